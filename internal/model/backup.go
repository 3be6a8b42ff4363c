package model

import "time"

// Backup is a stored zip archive of a server folder.
// It carries no database-specific tags and can be used across layers.
type Backup struct {
	ID        string    `json:"id"`
	Server    string    `json:"server"`
	Name      string    `json:"name"`
	ObjectKey string    `json:"-"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// BackupProgress is what the panel polls while an archive is being written.
type BackupProgress struct {
	InProgress bool `json:"isBackupping"`
	Percent    int  `json:"backupProgress"`
}
