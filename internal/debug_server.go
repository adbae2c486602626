package internal

import (
	"chat-relay/repositories"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

const maxInspectRows = 500

type InspectRow struct {
	Key          string
	Type         string
	Timestamp    string
	Conversation string
	EntityID     string
	Detail       string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() any

type PageData struct {
	Prefix    string
	Items     []InspectRow
	Truncated bool
	Stats     any
}

// NewInspectHandler renders the badger keys under ?prefix= as an HTML table.
// It is read-only and only mounted when ENABLE_INSPECT is set.
func NewInspectHandler(db *badger.DB, log *slog.Logger, mapper RowMapper, statsProvider StatsProvider) http.Handler {
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))
	if mapper == nil {
		mapper = DefaultMapper
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = repositories.MessagePrefix
		}

		data := PageData{Prefix: prefix}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		err := db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				if len(data.Items) == maxInspectRows {
					data.Truncated = true
					return nil
				}
				item := it.Item()
				err := item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapper(string(item.Key()), val))
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			log.Error("Inspect scan failed", "prefix", prefix, "error", err)
			http.Error(w, "scan failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			log.Error("Inspect rendering failed", "error", err)
		}
	})
}

// DefaultMapper never shows values, user records hold password hashes.
func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:          key,
		Type:         "RAW",
		Timestamp:    "--:--:--",
		Conversation: "-",
		EntityID:     "--------",
		Detail:       "Size: " + strconv.Itoa(len(val)) + " bytes",
	}
	if len(parts) > 0 {
		row.Type = strings.ToUpper(parts[0])
	}
	if len(parts) >= 4 {
		row.Conversation = parts[1]
		if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, tsNano).Format("15:04:05")
		}
		row.EntityID = shortID(parts[3])
	}
	return row
}

// MessageMapper decodes message values and falls back to DefaultMapper for anything else.
func MessageMapper(key string, val []byte) InspectRow {
	row := DefaultMapper(key, val)
	if !strings.HasPrefix(key, repositories.MessagePrefix) {
		return row
	}
	message, err := repositories.DecodeMessage(val)
	if err != nil {
		row.Detail = "undecodable: " + err.Error()
		return row
	}
	row.Timestamp = message.At.Local().Format("15:04:05")
	row.EntityID = shortID(message.ID.String())
	row.Detail = message.From.String() + " → " + message.To.String() + ": " + message.Text
	return row
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
