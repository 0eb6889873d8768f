package storage

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/rewired-gh/setoracle/internal/models"
)

const filePermissions = 0o644

// requiredColumns are the columns the transition model cannot work without.
var requiredColumns = []string{"show_id", "set_index", "song_index", "song_name"}

// WriteCSV writes rows under the fixed column header.
func WriteCSV(w io.Writer, rows []models.FlatRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.Columns); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	for i := range rows {
		if err := cw.Write(encodeRow(&rows[i])); err != nil {
			return eris.Wrapf(err, "csv: write row %d", i)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "csv: flush")
}

func encodeRow(r *models.FlatRow) []string {
	encore := ""
	if r.EncoreIndex != nil {
		encore = strconv.Itoa(*r.EncoreIndex)
	}
	return []string{
		r.ShowID,
		r.ShowDate,
		r.City,
		r.State,
		r.Country,
		r.Venue,
		r.ArtistName,
		r.TourName,
		strconv.FormatBool(r.Festival),
		strconv.Itoa(r.SetIndex),
		strconv.Itoa(r.SongIndex),
		r.SongName,
		strconv.FormatBool(r.IsCover),
		r.CoverArtist,
		encore,
	}
}

// ReadCSV parses a row stream written by WriteCSV. Columns may appear in any
// order and optional ones may be absent, but every required column must exist.
func ReadCSV(r io.Reader) ([]models.FlatRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, eris.New("csv: empty input")
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}

	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := pos[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, eris.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	var rows []models.FlatRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "csv: line %d", line)
		}
		row, err := decodeRow(rec, pos)
		if err != nil {
			return nil, eris.Wrapf(err, "csv: line %d", line)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeRow(rec []string, pos map[string]int) (models.FlatRow, error) {
	field := func(name string) string {
		i, ok := pos[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var (
		r   models.FlatRow
		err error
	)
	r.ShowID = field("show_id")
	r.ShowDate = field("show_date")
	r.City = field("city")
	r.State = field("state")
	r.Country = field("country")
	r.Venue = field("venue")
	r.ArtistName = field("artist_name")
	r.TourName = field("tour_name")
	r.SongName = field("song_name")
	r.CoverArtist = field("cover_artist")

	if r.Festival, err = parseBool(field("festival_flag")); err != nil {
		return r, eris.Wrap(err, "festival_flag")
	}
	if r.IsCover, err = parseBool(field("is_cover")); err != nil {
		return r, eris.Wrap(err, "is_cover")
	}
	if r.SetIndex, err = strconv.Atoi(field("set_index")); err != nil {
		return r, eris.Wrap(err, "set_index")
	}
	if r.SongIndex, err = strconv.Atoi(field("song_index")); err != nil {
		return r, eris.Wrap(err, "song_index")
	}
	if s := field("encore_index"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return r, eris.Wrap(err, "encore_index")
		}
		r.EncoreIndex = &n
	}

	if err := r.Validate(); err != nil {
		return r, err
	}
	return r, nil
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

// ExportCSV writes rows to path atomically: a temp file is written then renamed.
func ExportCSV(path string, rows []models.FlatRow) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return eris.Wrap(err, "failed to create export directory")
	}

	tempPath := path + ".tmp"
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
	if err != nil {
		return eris.Wrap(err, "failed to create temp file")
	}

	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		_ = os.Remove(tempPath)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return eris.Wrap(err, "failed to close temp file")
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return eris.Wrap(err, "failed to rename file")
	}
	return nil
}

// ImportCSV reads a row stream from path.
func ImportCSV(path string) ([]models.FlatRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "failed to open csv")
	}
	defer f.Close()

	rows, err := ReadCSV(f)
	if err != nil {
		return nil, eris.Wrapf(err, "import %s", path)
	}
	return rows, nil
}
