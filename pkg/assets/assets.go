// Package assets loads the bitmap asset manifest consumed by
// pkg/presentation's draw_bitmap command: a static mapping from icon name
// to pixel dimensions and packed pixel bytes, delivered out of band as an
// INI file, grounded on the teacher's EDS-parsing use of gopkg.in/ini.v1
// (pkg/od/parser_v1.go) repurposed here for a plain key/value text asset
// instead of an object dictionary.
package assets

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/ini.v1"
)

// ErrUnknownIcon is returned by Table.Lookup for a name not present in the
// manifest.
var ErrUnknownIcon = errors.New("assets: unknown icon name")

// Bitmap is one decoded asset: row-major, LSB-first-within-byte packed
// pixel data at the declared width/height, per spec.md §6.
type Bitmap struct {
	Width  uint16
	Height uint16
	Pixels []byte
}

// Table is the loaded, read-only icon-name -> Bitmap mapping.
type Table struct {
	icons map[string]Bitmap
}

// Lookup returns the bitmap registered under name.
func (t *Table) Lookup(name string) (Bitmap, bool) {
	b, ok := t.icons[name]
	return b, ok
}

// Load parses an INI manifest: one section per icon, named by the icon
// name, with keys Width, Height, and either Hex or Base64 carrying the
// packed pixel bytes.
//
//	[arrow_up]
//	Width = 16
//	Height = 16
//	Hex = 00FF00FF...
func Load(path string) (*Table, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("assets: loading manifest: %w", err)
	}
	icons := make(map[string]Bitmap)
	for _, section := range file.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			continue
		}
		width, err := strconv.ParseUint(section.Key("Width").Value(), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("assets: icon %q: invalid Width: %w", name, err)
		}
		height, err := strconv.ParseUint(section.Key("Height").Value(), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("assets: icon %q: invalid Height: %w", name, err)
		}
		pixels, err := decodePixels(section)
		if err != nil {
			return nil, fmt.Errorf("assets: icon %q: %w", name, err)
		}
		icons[name] = Bitmap{Width: uint16(width), Height: uint16(height), Pixels: pixels}
	}
	return &Table{icons: icons}, nil
}

func decodePixels(section *ini.Section) ([]byte, error) {
	if key := section.Key("Hex"); key.Value() != "" {
		return hex.DecodeString(key.Value())
	}
	if key := section.Key("Base64"); key.Value() != "" {
		return base64.StdEncoding.DecodeString(key.Value())
	}
	return nil, errors.New("neither Hex nor Base64 pixel data present")
}
