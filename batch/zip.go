package batch

import (
	"archive/zip"
	"fmt"
	"path"
	"strings"
)

// ImageName returns the archive file name for a row's image: the row's own
// Filename when set, else a name derived from the index.
func ImageName(row Row, index int) string {
	name := strings.TrimSpace(row.Filename)
	if name == "" {
		return fmt.Sprintf("row_%03d.jpg", index+1)
	}
	if path.Ext(name) == "" {
		name += ".jpg"
	}
	return name
}

// WriteBundle writes a zip archive holding the result CSV and one JPEG per
// generated row.
func WriteBundle(zw *zip.Writer, rows []Row, images map[int][]byte, delim rune) error {
	w, err := zw.Create("results.csv")
	if err != nil {
		return err
	}
	if err := WriteRows(w, rows, delim); err != nil {
		return err
	}
	used := make(map[string]bool)
	for i, row := range rows {
		data, ok := images[i]
		if !ok {
			continue
		}
		name := ImageName(row, i)
		if used[name] {
			// rows sharing a Filename must not collide in the archive
			ext := path.Ext(name)
			name = fmt.Sprintf("%s_%03d%s", strings.TrimSuffix(name, ext), i+1, ext)
		}
		used[name] = true
		w, err := zw.Create(path.Join("images", name))
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return nil
}
