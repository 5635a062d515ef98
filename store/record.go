package store

import (
	"bytes"
	"errors"
	"strconv"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

var ErrInvalidBody = errors.New("body is not a JSON object")

type Kind string

const (
	User   Kind = "user"
	House  Kind = "house"
	Room   Kind = "room"
	Device Kind = "device"
)

// IDKey is the member name the id is stored under, e.g. "room_id".
func (k Kind) IDKey() string {
	return string(k) + "_id"
}

func (k Kind) Title() string {
	if k == "" {
		return ""
	}
	return string(k[0]-'a'+'A') + string(k[1:])
}

// Record is a stored request body with its id injected as the first member.
type Record struct {
	Kind Kind
	ID   int
	doc  []byte
}

// NewRecord validates body and builds the stored document. Members keep the
// order they had in body; a repeated member keeps its first position and its
// last value, and a member colliding with the id key is dropped.
func NewRecord(kind Kind, id int, body []byte) (Record, error) {
	if !utf8.Valid(body) || !gjson.ValidBytes(body) {
		return Record{}, ErrInvalidBody
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return Record{}, ErrInvalidBody
	}

	idKey := kind.IDKey()
	var keys, values []string
	index := map[string]int{}
	parsed.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if name == idKey {
			return true
		}
		if i, ok := index[name]; ok {
			values[i] = value.Raw
			return true
		}
		index[name] = len(keys)
		keys = append(keys, key.Raw)
		values = append(values, value.Raw)
		return true
	})

	var buf bytes.Buffer
	buf.WriteString(`{"`)
	buf.WriteString(idKey)
	buf.WriteString(`":`)
	buf.WriteString(strconv.Itoa(id))
	for i, k := range keys {
		buf.WriteByte(',')
		buf.WriteString(k)
		buf.WriteByte(':')
		buf.WriteString(values[i])
	}
	buf.WriteByte('}')

	return Record{Kind: kind, ID: id, doc: buf.Bytes()}, nil
}

// Get returns a member of the stored document.
func (r Record) Get(path string) gjson.Result {
	return gjson.GetBytes(r.doc, path)
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r.doc == nil {
		return []byte("null"), nil
	}
	return r.doc, nil
}
