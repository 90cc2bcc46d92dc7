// Package model defines database models
package model

type File struct {
	ID          string `gorm:"primaryKey" json:"fid"`
	UserID      string `gorm:"not null;uniqueIndex:idx_files_user_path,priority:1" json:"-"`
	StoredName  string `gorm:"not null" json:"filename"`    // Original name plus the upload timestamp
	DisplayName string `gorm:"not null" json:"custom_name"` // What the user sees in the browser
	Path        string `gorm:"not null;uniqueIndex:idx_files_user_path,priority:2" json:"path"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	StorageKey  string `gorm:"not null;uniqueIndex" json:"-"`
	CreatedAt   int64  `gorm:"autoCreateTime:milli" json:"created_at"` // unix milliseconds
	UpdatedAt   int64  `gorm:"autoUpdateTime:milli" json:"updated_at"`
}

func (f File) LogicalPath() string { return f.Path }

func (f File) Label() string { return f.DisplayName }

// StorageKeyFor returns the object key of a file. Keys never change once
// issued, moving or renaming a file only touches its metadata.
func StorageKeyFor(owner, fid string) string {
	return owner + "/" + fid
}
