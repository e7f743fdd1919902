package journal

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var csvHeader = []string{"timestamp", "interpretation", "action", "symbol", "qty", "price", "fees", "pnl", "capital"}

// CSV is a file-backed journal holding the entries of a single account. The
// column layout is the forward-testing CSV format.
type CSV struct {
	mu      sync.Mutex
	path    string
	account string
	f       *os.File
	w       *csv.Writer
	seq     int64
}

// NewCSV opens path for appending, writing the header when the file is new.
func NewCSV(path, account string) (*CSV, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	j := &CSV{path: path, account: account, f: f, w: csv.NewWriter(f)}
	if st.Size() == 0 {
		if err := j.w.Write(csvHeader); err != nil {
			f.Close()
			return nil, err
		}
		j.w.Flush()
		if err := j.w.Error(); err != nil {
			f.Close()
			return nil, err
		}
		return j, nil
	}

	existing, err := j.read()
	if err != nil {
		f.Close()
		return nil, err
	}
	j.seq = int64(len(existing))
	return j, nil
}

func (j *CSV) Append(_ context.Context, e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.w.Write([]string{
		e.Time.UTC().Format(time.RFC3339Nano),
		e.Interpretation,
		string(e.Action),
		e.Symbol,
		e.Quantity.String(),
		e.Price.String(),
		e.Fees.String(),
		e.PnL.String(),
		e.CapitalAfter.String(),
	}); err != nil {
		return err
	}
	j.w.Flush()
	if err := j.w.Error(); err != nil {
		return err
	}
	j.seq++
	return nil
}

// Entries reads the file back. The account argument must match the account
// the file was opened for.
func (j *CSV) Entries(_ context.Context, account string) ([]Entry, error) {
	if account != j.account {
		return nil, nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.read()
}

func (j *CSV) read() ([]Entry, error) {
	f, err := os.Open(j.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	var out []Entry
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		e, err := parseCSVRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", j.path, line, err)
		}
		e.Seq = int64(len(out) + 1)
		e.Account = j.account
		out = append(out, e)
	}
	return out, nil
}

func parseCSVRecord(rec []string) (Entry, error) {
	var (
		e   Entry
		err error
	)
	if e.Time, err = time.Parse(time.RFC3339Nano, rec[0]); err != nil {
		return e, err
	}
	e.Interpretation = rec[1]
	if e.Action, err = ParseAction(rec[2]); err != nil {
		return e, err
	}
	e.Symbol = rec[3]

	nums := []*decimal.Decimal{&e.Quantity, &e.Price, &e.Fees, &e.PnL, &e.CapitalAfter}
	for i, dst := range nums {
		d, err := decimal.NewFromString(rec[4+i])
		if err != nil {
			return e, fmt.Errorf("column %s: %w", csvHeader[4+i], err)
		}
		*dst = d
	}
	return e, nil
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.w.Flush()
	if err := j.w.Error(); err != nil {
		return err
	}
	return j.f.Close()
}

// WriteCSV exports entries in the CSV journal layout.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write([]string{
			e.Time.UTC().Format(time.RFC3339Nano),
			e.Interpretation,
			string(e.Action),
			e.Symbol,
			e.Quantity.String(),
			e.Price.String(),
			e.Fees.String(),
			e.PnL.String(),
			e.CapitalAfter.String(),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
