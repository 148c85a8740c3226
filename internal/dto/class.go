package dto

// UpdateClassConfigRequest pushes class and supervisor settings to the
// remote class. Values use the server's own property names.
type UpdateClassConfigRequest struct {
	Class      map[string]string `json:"class"`
	Supervisor map[string]string `json:"supervisor"`
}

// UpdateSheetRequest pushes worksheet or exam settings.
type UpdateSheetRequest struct {
	Values map[string]string `json:"values" binding:"required"`
}

// AccessURLResponse returns a ready-to-open session URL.
type AccessURLResponse struct {
	URL string `json:"url"`
}

// RestoreBackupRequest names the backup year to restore.
type RestoreBackupRequest struct {
	Year int `json:"year" binding:"required"`
}
