package postgres

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/reflectx"
	"github.com/sirupsen/logrus"
)

// Row is a raw record keyed by column name.
type Row map[string]interface{}

// FieldConverter normalizes one column value before it is assigned to
// the entity field.
type FieldConverter func(interface{}) (interface{}, error)

// EpochSeconds converts a timestamp column to float64 epoch seconds.
func EpochSeconds() FieldConverter {
	return func(v interface{}) (interface{}, error) {
		switch t := v.(type) {
		case nil:
			return nil, nil
		case time.Time:
			return float64(t.UnixNano()) / float64(time.Second), nil
		case float64:
			return t, nil
		default:
			return nil, fmt.Errorf("cannot convert %T to epoch seconds", v)
		}
	}
}

// EnumOrDefault coerces a stored string to an enum value, substituting
// def when the stored string matches no known variant. An unknown value
// never fails the read.
func EnumOrDefault[E ~string](parse func(string) (E, bool), def E) FieldConverter {
	return func(v interface{}) (interface{}, error) {
		var s string

		switch t := v.(type) {
		case nil:
			return def, nil
		case string:
			s = t
		case []byte:
			s = string(t)
		default:
			return def, nil
		}

		if e, ok := parse(s); ok {
			return e, nil
		}

		return def, nil
	}
}

var fieldMapper = reflectx.NewMapper("db")

// Mapper converts between raw rows and typed entities for one table,
// applying explicit per-column converters. Conversion failures are
// reported as "no result" so the caller can apply its own skip policy.
type Mapper[T any] struct {
	schema     string
	table      string
	idField    string
	converters map[string]FieldConverter
	logger     *logrus.Logger
}

func NewMapper[T any](schema, table string, logger *logrus.Logger) *Mapper[T] {
	return &Mapper[T]{
		schema:     schema,
		table:      table,
		idField:    strings.TrimSuffix(table, "s") + "_id",
		converters: map[string]FieldConverter{},
		logger:     logger,
	}
}

func (m *Mapper[T]) WithIDField(field string) *Mapper[T] {
	m.idField = field
	return m
}

func (m *Mapper[T]) WithConverter(column string, fn FieldConverter) *Mapper[T] {
	m.converters[column] = fn
	return m
}

func (m *Mapper[T]) FullTable() string {
	return m.schema + "." + m.table
}

func (m *Mapper[T]) IDField() string {
	return m.idField
}

// FromRow builds an entity from a raw row. Columns without a matching
// db-tagged field are ignored; nil values leave the field at its zero
// value.
func (m *Mapper[T]) FromRow(row Row) (T, bool) {
	var entity T

	v := reflect.ValueOf(&entity).Elem()
	fields := fieldMapper.FieldMap(v)

	for column, raw := range row {
		fv, ok := fields[column]
		if !ok {
			continue
		}

		val := raw
		if conv, ok := m.converters[column]; ok {
			var err error
			if val, err = conv(raw); err != nil {
				m.logger.
					WithError(err).
					WithField("column", column).
					Errorf("error converting row to %T", entity)
				var zero T
				return zero, false
			}
		}

		if val == nil {
			continue
		}

		if err := setField(fv, val); err != nil {
			m.logger.
				WithError(err).
				WithField("column", column).
				Errorf("error converting row to %T", entity)
			var zero T
			return zero, false
		}
	}

	return entity, true
}

// ToRow extracts a column/value map from an entity's db-tagged fields.
// Entities that do not expose every table column simply yield a
// smaller map.
func (m *Mapper[T]) ToRow(entity T) Row {
	v := reflect.ValueOf(entity)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return Row{}
		}
		v = v.Elem()
	}

	out := Row{}
	for column, fv := range fieldMapper.FieldMap(v) {
		out[column] = fv.Interface()
	}

	return out
}

func setField(fv reflect.Value, val interface{}) error {
	rv := reflect.ValueOf(val)

	if rv.Type().AssignableTo(fv.Type()) {
		fv.Set(rv)
		return nil
	}

	if fv.CanAddr() {
		if scanner, ok := fv.Addr().Interface().(sql.Scanner); ok {
			return scanner.Scan(val)
		}
	}

	if rv.Type().ConvertibleTo(fv.Type()) {
		fv.Set(rv.Convert(fv.Type()))
		return nil
	}

	return fmt.Errorf("cannot assign %T to %s", val, fv.Type())
}
