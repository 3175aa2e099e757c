package config

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

// charmap of every fixed-width name written into or read from a model file
var nameCharMap = charmap.Windows1252

// "Windows 1252", "windows-1252" and "windows1252" name the same charmap
func encodingKey(name string) string {
	return strings.ToLower(strings.NewReplacer(" ", "", "-", "", "_", "").Replace(name))
}

func SetEncoding(name string) error {
	key := encodingKey(name)
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok && encodingKey(cm.String()) == key {
			nameCharMap = cm
			return nil
		}
	}
	return errors.Errorf("Unknown name encoding %q, expected one of: %s", name, strings.Join(ListEncodings(), ", "))
}

func ListEncodings() []string {
	var list []string
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	return list
}

func GetEncoding() *charmap.Charmap {
	return nameCharMap
}
