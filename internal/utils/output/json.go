package output

import (
	"encoding/json"
	"io"
	"os"
)

// WriteJSON writes v as indented JSON followed by a newline
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// SaveJSON writes an indented JSON export of v (a record or a slice of
// records) to filepath.
func SaveJSON(v interface{}, filepath string) error {
	file, err := os.Create(filepath)
	if err != nil {
		return err
	}
	if err := WriteJSON(file, v); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
