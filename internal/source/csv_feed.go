package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	appErrors "github.com/unclebandit/directmail-scheduler/internal/errors"
)

// headerAliases lists the accepted header spellings for each Record field.
// Matching ignores case, spaces, underscores and dashes.
var headerAliases = map[string][]string{
	"radarid":        {"radarid", "radar id", "id", "property id"},
	"address":        {"address", "property address", "site address", "street"},
	"city":           {"city", "property city", "site city"},
	"state":          {"state", "property state", "site state"},
	"zip":            {"zip", "zipfive", "zip code", "property zip", "site zip", "postal code"},
	"ownerfirstname": {"first name", "firstname", "owner first name", "owner firstname"},
	"ownerlastname":  {"last name", "lastname", "owner last name", "owner lastname"},
	"owneraddress":   {"mailing address", "owner address", "mail address"},
	"ownercity":      {"mailing city", "owner city", "mail city"},
	"ownerstate":     {"mailing state", "owner state", "mail state"},
	"ownerzip":       {"mailing zip", "owner zip", "mail zip", "ownerzipfive"},
	"phone":          {"phone", "phone number", "owner phone"},
	"email":          {"email", "email address", "owner email"},
	"ptype":          {"ptype", "property type", "type"},
	"avm":            {"avm", "estimated value", "value"},
}

// CSVFeed serves records from a local delimited file with a header row.
// The file is re-read whenever a fetch starts from offset zero.
type CSVFeed struct {
	Path      string
	Delimiter rune

	mu      sync.Mutex
	records []Record
}

func NewCSVFeed(path string) *CSVFeed {
	return &CSVFeed{Path: path, Delimiter: ','}
}

// FetchPage ignores the filter payload: the local feed is already campaign specific.
func (f *CSVFeed) FetchPage(_ context.Context, _ string, start, limit int) (*Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if start == 0 || f.records == nil {
		file, err := os.Open(f.Path)
		if err != nil {
			return nil, appErrors.Wrap(appErrors.KindSourceUnavailable, "csv.open", err)
		}
		defer file.Close()

		records, err := ParseCSV(file, f.Delimiter)
		if err != nil {
			return nil, appErrors.Wrap(appErrors.KindSourceUnavailable, "csv.parse", err)
		}
		f.records = records
	}

	total := len(f.records)
	if start >= total {
		return &Page{Total: total, Success: true}, nil
	}
	end := min(start+limit, total)

	page := make([]Record, end-start)
	copy(page, f.records[start:end])
	return &Page{Records: page, Total: total, Success: true}, nil
}

// ParseCSV reads a header row and maps columns onto Record fields through headerAliases.
// Unknown columns are ignored.
func ParseCSV(r io.Reader, delimiter rune) ([]Record, error) {
	reader := csv.NewReader(r)
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty feed: missing header row")
		}
		return nil, err
	}

	columns := resolveColumns(header)
	if _, ok := columns["address"]; !ok {
		if _, ok := columns["radarid"]; !ok {
			return nil, fmt.Errorf("feed header has neither an id nor an address column")
		}
	}

	records := []Record{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlank(row) {
			continue
		}

		get := func(field string) string {
			idx, ok := columns[field]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		rec := Record{
			RadarID:        get("radarid"),
			Address:        get("address"),
			City:           get("city"),
			State:          get("state"),
			ZipFive:        get("zip"),
			OwnerFirstName: get("ownerfirstname"),
			OwnerLastName:  get("ownerlastname"),
			OwnerAddress:   get("owneraddress"),
			OwnerCity:      get("ownercity"),
			OwnerState:     get("ownerstate"),
			OwnerZipFive:   get("ownerzip"),
			Phone:          get("phone"),
			Email:          get("email"),
			PType:          get("ptype"),
		}
		if v := get("avm"); v != "" {
			if avm, err := strconv.ParseFloat(strings.NewReplacer("$", "", ",", "").Replace(v), 64); err == nil {
				rec.AVM = avm
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func resolveColumns(header []string) map[string]int {
	fold := cases.Fold()

	lookup := map[string]string{}
	for field, aliases := range headerAliases {
		for _, alias := range aliases {
			lookup[normalizeHeader(fold.String(alias))] = field
		}
	}

	columns := map[string]int{}
	for i, h := range header {
		key := normalizeHeader(fold.String(strings.TrimPrefix(h, "\ufeff")))
		if field, ok := lookup[key]; ok {
			if _, seen := columns[field]; !seen {
				columns[field] = i
			}
		}
	}
	return columns
}

func normalizeHeader(s string) string {
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.TrimSpace(s))
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var _ RecordSource = (*CSVFeed)(nil)
