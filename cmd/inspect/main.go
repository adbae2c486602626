package main

import (
	"chat-relay/domain"
	"chat-relay/repositories"
	"fmt"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		color.Error.Println(err)
		os.Exit(1)
	}
}

// run prints one conversation, or every stored message when no pair is given.
func run(args []string) error {
	var dbPath, a, b string
	flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	flagSet.StringVar(&dbPath, "db", "./data/badger", "path to the badger directory")
	flagSet.StringVar(&a, "a", "", "first participant")
	flagSet.StringVar(&b, "b", "", "second participant")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if (a == "") != (b == "") {
		return fmt.Errorf("--a and --b go together")
	}

	prefix := []byte(repositories.MessagePrefix)
	if a != "" {
		prefix = repositories.ConversationPrefix(domain.Identity(a), domain.Identity(b))
	}

	db, err := openDB(dbPath)
	if err != nil {
		return fmt.Errorf("error while opening badger: %w", err)
	}
	defer db.Close()

	table := newTable()
	count := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				message, err := repositories.DecodeMessage(v)
				if err != nil {
					// One broken record does not hide the others
					color.Warn.Printf("Undecodable value at %s: %v\n", item.Key(), err)
					return nil
				}
				table.Append([]string{
					message.At.Local().Format("2006-01-02 15:04:05.000"),
					message.From.String(),
					message.To.String(),
					message.Text,
					message.ID.String()[:8],
				})
				count++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	color.Info.Printf("%d message(s) under %s\n", count, strings.TrimSuffix(string(prefix), ":"))
	table.Render()
	return nil
}

func newTable() *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "From", "To", "Text", "ID"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
