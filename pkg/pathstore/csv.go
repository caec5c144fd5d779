package pathstore

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"pathplanner/pkg/model"
)

// CSVHeader is the first line written by WriteCSV.
const CSVHeader = "x,y,z"

// maxCSVLine bounds one line. Longer lines are skipped, not buffered.
const maxCSVLine = 4096

// ReadCSV parses x,y,z lines. A header-like first line is skipped. Lines with
// fewer than three fields, with a field that is not a finite number, or
// longer than maxCSVLine are skipped and counted. Only a read error aborts
// the import.
func ReadCSV(r io.Reader) (wps []model.Waypoint, skipped int, err error) {
	wps = []model.Waypoint{}
	br := bufio.NewReaderSize(r, maxCSVLine)
	first := true
	for {
		raw, tooLong, rerr := readLine(br)
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, skipped, rerr
		}
		line := strings.TrimSpace(raw)
		if first {
			first = false
			if !tooLong && isHeader(line) {
				continue
			}
		}
		if tooLong {
			skipped++
			continue
		}
		if line == "" {
			continue
		}
		wp, perr := parseCSVLine(line)
		if perr != nil {
			skipped++
			continue
		}
		wps = append(wps, wp)
	}
	return wps, skipped, nil
}

// readLine returns the next line without its terminator. A line that does
// not fit the reader's buffer is drained and reported as tooLong.
func readLine(br *bufio.Reader) (line string, tooLong bool, err error) {
	chunk, more, err := br.ReadLine()
	if err != nil {
		return "", false, err
	}
	line = string(chunk)
	for more {
		tooLong = true
		if _, more, err = br.ReadLine(); err != nil {
			if err == io.EOF {
				return "", true, nil
			}
			return "", true, err
		}
	}
	return line, tooLong, nil
}

func isHeader(line string) bool {
	l := strings.ToLower(line)
	return strings.Contains(l, "x") && strings.Contains(l, "y") && strings.Contains(l, "z")
}

func parseCSVLine(line string) (model.Waypoint, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 3 {
		return model.Waypoint{}, fmt.Errorf("%d fields: %w", len(parts), ErrInvalidInput)
	}
	var v [3]float64
	for i := range v {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return model.Waypoint{}, fmt.Errorf("field %d: %w", i, ErrInvalidInput)
		}
		v[i] = f
	}
	wp := model.WP(v[0], v[1], v[2])
	if !wp.Finite() {
		return model.Waypoint{}, ErrInvalidInput
	}
	return wp, nil
}

// WriteCSV writes the header followed by one x,y,z line per waypoint.
func WriteCSV(w io.Writer, wps []model.Waypoint) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(CSVHeader + "\n"); err != nil {
		return err
	}
	for _, wp := range wps {
		line := strconv.FormatFloat(wp.X, 'g', -1, 64) + "," +
			strconv.FormatFloat(wp.Y, 'g', -1, 64) + "," +
			strconv.FormatFloat(wp.Z, 'g', -1, 64) + "\n"
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}
