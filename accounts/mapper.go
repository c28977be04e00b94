package accounts

import (
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// Row is one result row keyed by column name, as produced by sqlx MapScan.
type Row map[string]interface{}

// mapAccount converts a row into an Account column by column so that a bad
// row says which column was wrong and how.
func mapAccount(row Row) (Account, error) {
	var a Account
	var err error

	if a.ID, err = row.integer("id"); err != nil {
		return Account{}, err
	}
	if a.Name, err = row.text("name"); err != nil {
		return Account{}, err
	}
	if a.AccountType, err = row.text("account_type"); err != nil {
		return Account{}, err
	}
	if a.Balance, err = row.real("balance"); err != nil {
		return Account{}, err
	}
	if a.Currency, err = row.text("currency"); err != nil {
		return Account{}, err
	}
	if a.Description, err = row.optionalText("description"); err != nil {
		return Account{}, err
	}
	if a.CreatedAt, err = row.datetime("created_at"); err != nil {
		return Account{}, err
	}
	if a.UpdatedAt, err = row.datetime("updated_at"); err != nil {
		return Account{}, err
	}
	return a, nil
}

func (r Row) value(column string, optional bool) (interface{}, error) {
	v, ok := r[column]
	if !ok {
		return nil, &FieldError{Column: column, Err: ErrMissingColumn}
	}
	if v == nil && !optional {
		return nil, &FieldError{Column: column, Err: ErrNullValue}
	}
	return v, nil
}

func mismatch(column string, v interface{}, want string) error {
	return &FieldError{Column: column, Err: fmt.Errorf("%w: got %T, want %s", ErrTypeMismatch, v, want)}
}

func (r Row) integer(column string) (int64, error) {
	v, err := r.value(column, false)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	default:
		return 0, mismatch(column, v, "integer")
	}
}

func (r Row) real(column string) (float64, error) {
	v, err := r.value(column, false)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		// REAL affinity stores whole numbers as integers when they fit.
		return float64(n), nil
	default:
		return 0, mismatch(column, v, "real")
	}
}

func (r Row) text(column string) (string, error) {
	v, err := r.value(column, false)
	if err != nil {
		return "", err
	}
	return asString(column, v)
}

func (r Row) optionalText(column string) (*string, error) {
	v, err := r.value(column, true)
	if err != nil || v == nil {
		return nil, err
	}
	s, err := asString(column, v)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func asString(column string, v interface{}) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", mismatch(column, v, "text")
	}
}

func (r Row) datetime(column string) (time.Time, error) {
	v, err := r.value(column, false)
	if err != nil {
		return time.Time{}, err
	}
	switch t := v.(type) {
	case time.Time:
		// The driver yields the zero time for text it could not parse.
		if t.IsZero() {
			return time.Time{}, &FieldError{Column: column, Err: fmt.Errorf("%w: unparseable datetime", ErrTypeMismatch)}
		}
		return t.UTC(), nil
	case string:
		return parseTimestamp(column, t)
	case []byte:
		return parseTimestamp(column, string(t))
	case int64:
		return time.Unix(t, 0).UTC(), nil
	default:
		return time.Time{}, mismatch(column, v, "datetime")
	}
}

func parseTimestamp(column, s string) (time.Time, error) {
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &FieldError{Column: column, Err: fmt.Errorf("%w: unparseable datetime %q", ErrTypeMismatch, s)}
}
