package pdf

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

// Info is the document information dictionary.
type Info struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
	Producer string
	Created  time.Time
	Modified time.Time
}

func (d *Doc) infoDict(create bool) *sdf.Dict {
	t := d.sdf.Trailer()
	if info := d.sdf.Dict(t.Get("Info")); info != nil {
		return info
	}
	if !create {
		return nil
	}
	info, ref := d.sdf.CreateIndirectDict()
	t.Set("Info", ref)
	return info
}

// Info returns the document information.
func (d *Doc) Info() Info {
	dict := d.infoDict(false)
	if dict == nil {
		return Info{}
	}
	text := func(k sdf.Name) string { return d.sdf.TextValue(dict.Get(k)) }
	info := Info{
		Title:    text("Title"),
		Author:   text("Author"),
		Subject:  text("Subject"),
		Keywords: text("Keywords"),
		Creator:  text("Creator"),
		Producer: text("Producer"),
	}
	info.Created, _ = ParseDate(text("CreationDate"))
	info.Modified, _ = ParseDate(text("ModDate"))
	return info
}

// SetInfo writes the non-empty fields of info.
func (d *Doc) SetInfo(info Info) {
	dict := d.infoDict(true)
	put := func(k sdf.Name, v string) {
		if v != "" {
			dict.PutText(k, v)
		}
	}
	put("Title", info.Title)
	put("Author", info.Author)
	put("Subject", info.Subject)
	put("Keywords", info.Keywords)
	put("Creator", info.Creator)
	put("Producer", info.Producer)
	if !info.Created.IsZero() {
		dict.PutString("CreationDate", FormatDate(info.Created))
	}
	if !info.Modified.IsZero() {
		dict.PutString("ModDate", FormatDate(info.Modified))
	}
}

// FormatDate renders t as a PDF date string.
func FormatDate(t time.Time) string {
	s := t.Format("D:20060102150405")
	_, off := t.Zone()
	if off == 0 {
		return s + "Z"
	}
	sign := '+'
	if off < 0 {
		sign, off = '-', -off
	}
	return fmt.Sprintf("%s%c%02d'%02d'", s, sign, off/3600, off%3600/60)
}

// ParseDate reads a PDF date string. Missing trailing fields default to
// their lowest value; a missing zone means UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "D:")
	if len(s) < 4 {
		return time.Time{}, fmt.Errorf("pdf: bad date %q", s)
	}
	field := func(off, n, def int) int {
		if len(s) < off+n {
			return def
		}
		v, err := strconv.Atoi(s[off : off+n])
		if err != nil {
			return def
		}
		return v
	}
	year := field(0, 4, 0)
	if year == 0 {
		return time.Time{}, fmt.Errorf("pdf: bad date %q", s)
	}
	month, day := field(4, 2, 1), field(6, 2, 1)
	hour, min, sec := field(8, 2, 0), field(10, 2, 0), field(12, 2, 0)
	loc := time.UTC
	if len(s) > 14 {
		switch z := s[14]; z {
		case '+', '-':
			zs := strings.ReplaceAll(s[15:], "'", "")
			zh, zm := 0, 0
			if len(zs) >= 2 {
				zh, _ = strconv.Atoi(zs[:2])
			}
			if len(zs) >= 4 {
				zm, _ = strconv.Atoi(zs[2:4])
			}
			off := zh*3600 + zm*60
			if z == '-' {
				off = -off
			}
			loc = time.FixedZone("", off)
		}
	}
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, loc), nil
}

// Metadata returns the catalog's XMP metadata packet, or nil.
func (d *Doc) Metadata(ctx context.Context) ([]byte, error) {
	cat := d.sdf.Root()
	if cat == nil {
		return nil, nil
	}
	st := d.sdf.Stream(cat.Get("Metadata"))
	if st == nil {
		return nil, nil
	}
	return d.decode(ctx, st)
}

// SetMetadata replaces the XMP metadata packet. Metadata is stored
// uncompressed so that file scanners can find it.
func (d *Doc) SetMetadata(xmp []byte) {
	cat := d.sdf.Root()
	if cat == nil {
		return
	}
	dict := sdf.NewDict()
	dict.PutName("Type", "Metadata")
	dict.PutName("Subtype", "XML")
	cat.Set("Metadata", d.sdf.CreateIndirect(sdf.NewStream(dict, xmp)))
}
