package models

// SelectedFile is a PDF chosen by the user for processing.
// A selection is an ordered slice of these and is never persisted.
type SelectedFile struct {
	Name    string `json:"name"`
	Content []byte `json:"-"`
}

// FileNames returns the display names of files in selection order.
func FileNames(files []SelectedFile) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}
