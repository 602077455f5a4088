package filters

import (
	"bytes"
	"compress/flate"
	"compress/lzw"
	"compress/zlib"
	"context"
	"errors"
	"testing"

	"github.com/NityaNandPandey/AndroidPDF/sdf"
)

func TestFlateDecode(t *testing.T) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write([]byte("hello world"))
	w.Close()

	out, err := NewFlateDecoder().Decode(context.Background(), buf.Bytes(), nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if string(out) != "hello world" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestFlateDecodeRawDeflate(t *testing.T) {
	var buf bytes.Buffer
	w, _ := flate.NewWriter(&buf, flate.BestSpeed)
	w.Write([]byte("no zlib header"))
	w.Close()
	out, err := NewFlateDecoder().Decode(context.Background(), buf.Bytes(), nil)
	if err != nil || string(out) != "no zlib header" {
		t.Fatalf("out %q err %v", out, err)
	}
}

func TestFlateDecodeWithPredictor(t *testing.T) {
	var comp bytes.Buffer
	w := zlib.NewWriter(&comp)
	// Two PNG rows of 3 bytes: Sub then Up.
	w.Write([]byte{1, 10, 2, 3, 2, 1, 1, 1})
	w.Close()
	params := sdf.NewDict()
	params.PutInt("Predictor", 12)
	params.PutInt("Columns", 3)
	out, err := NewFlateDecoder().Decode(context.Background(), comp.Bytes(), params)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	want := []byte{10, 12, 15, 11, 13, 16}
	if !bytes.Equal(out, want) {
		t.Fatalf("got %v want %v", out, want)
	}
}

func TestPredictorRoundTrip(t *testing.T) {
	params := sdf.NewDict()
	params.PutInt("Predictor", 15)
	params.PutInt("Columns", 4)
	params.PutInt("Colors", 3)
	data := make([]byte, 4*3*5)
	for i := range data {
		data[i] = byte(i * 7)
	}
	enc, err := flateCodec{}.Encode(data, params)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := flateCodec{}.Decode(context.Background(), enc, params)
	if err != nil || !bytes.Equal(dec, data) {
		t.Fatalf("round trip failed: %v", err)
	}
}

func TestLZWDecodeEarlyChange0(t *testing.T) {
	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.MSB, 8)
	w.Write([]byte("TOBEORNOTTOBEORTOBEORNOT"))
	w.Close()
	params := sdf.NewDict()
	params.PutInt("EarlyChange", 0)
	out, err := NewLZWDecoder().Decode(context.Background(), buf.Bytes(), params)
	if err != nil || string(out) != "TOBEORNOTTOBEORTOBEORNOT" {
		t.Fatalf("out %q err %v", out, err)
	}
}

func TestLZWDecodeEarlyChange1(t *testing.T) {
	// Example from the PDF reference: 45 41 41 41 41 42 (EarlyChange 1).
	in := []byte{0x80, 0x0B, 0x60, 0x50, 0x22, 0x0C, 0x0C, 0x85, 0x01}
	out, err := NewLZWDecoder().Decode(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !bytes.Equal(out, []byte{0x2D, 0x2D, 0x2D, 0x2D, 0x2D, 0x41, 0x2D, 0x2D, 0x2D, 0x42}) {
		t.Fatalf("unexpected output: %x", out)
	}
}

func TestCodecRoundTrips(t *testing.T) {
	data := []byte("aaaaaaaaaabcdefgggggggggggggggggggggh\x00\x01\x02~>")
	for _, name := range []string{"FlateDecode", "ASCIIHexDecode", "ASCII85Decode", "RunLengthDecode"} {
		p := NewPipeline(nil, DefaultLimits())
		enc, err := p.Encode(data, []string{name}, nil)
		if err != nil {
			t.Fatalf("%s encode: %v", name, err)
		}
		dec, err := p.Decode(context.Background(), enc, []string{name}, nil)
		if err != nil {
			t.Fatalf("%s decode: %v", name, err)
		}
		if !bytes.Equal(dec, data) {
			t.Fatalf("%s round trip: got %q", name, dec)
		}
	}
}

func TestRunLengthDecode(t *testing.T) {
	in := []byte{2, 'a', 'b', 'c', 254, 'z', 128, 'x'}
	out, err := NewRunLengthDecoder().Decode(context.Background(), in, nil)
	if err != nil || string(out) != "abczzz" {
		t.Fatalf("out %q err %v", out, err)
	}
}

func TestASCIIDecoders(t *testing.T) {
	out, err := NewASCIIHexDecoder().Decode(context.Background(), []byte("48 65 6c\n6c 6f 7>"), nil)
	if err != nil || string(out) != "Hellop" {
		t.Fatalf("hex: %q %v", out, err)
	}
	out, err = NewASCII85Decoder().Decode(context.Background(), []byte("<~87cURD]i,\"Ebo80~>"), nil)
	if err != nil || string(out) != "Hello World!" {
		t.Fatalf("a85: %q %v", out, err)
	}
}

func TestUnsupportedFilters(t *testing.T) {
	p := NewPipeline(nil, Limits{})
	for _, name := range []string{"JBIG2Decode", "JPXDecode", "NoSuchDecode"} {
		_, err := p.Decode(context.Background(), []byte{1, 2, 3}, []string{name}, nil)
		if !errors.Is(err, sdf.ErrUnsupported) {
			t.Fatalf("%s: expected ErrUnsupported, got %v", name, err)
		}
	}
}

func TestDecodeLimit(t *testing.T) {
	data := bytes.Repeat([]byte{0}, 1<<16)
	enc, _ := flateCodec{}.Encode(data, nil)
	p := NewPipeline(nil, Limits{MaxDecompressedSize: 1024})
	if _, err := p.Decode(context.Background(), enc, []string{"FlateDecode"}, nil); !errors.Is(err, ErrLimit) {
		t.Fatalf("expected ErrLimit, got %v", err)
	}
}

func TestDecodeStreamAndSetData(t *testing.T) {
	s := sdf.NewStream(nil, nil)
	if err := SetStreamData(s, []byte("BT /F1 12 Tf (Hi) Tj ET"), "ASCIIHexDecode", "FlateDecode"); err != nil {
		t.Fatal(err)
	}
	names, _ := ExtractFilters(nil, s.Dict)
	if len(names) != 2 || names[0] != "ASCIIHexDecode" {
		t.Fatalf("filters = %v", names)
	}
	out, err := DecodeStream(context.Background(), nil, s, DefaultLimits())
	if err != nil || string(out) != "BT /F1 12 Tf (Hi) Tj ET" {
		t.Fatalf("out %q err %v", out, err)
	}
	data, rest, err := DecodeStreamUntil(context.Background(), nil, s, DefaultLimits(), "FlateDecode")
	if err != nil || len(rest) != 1 || rest[0] != "FlateDecode" || bytes.Equal(data, out) {
		t.Fatalf("partial decode: rest %v err %v", rest, err)
	}
}

func TestValidateImageBounds(t *testing.T) {
	tests := []struct {
		w, h int
		ok   bool
	}{
		{100, 100, true},
		{0, 10, false},
		{MaxImageDimension + 1, 1, false},
		{20000, 20000, false},
	}
	for _, tt := range tests {
		if err := ValidateImageBounds(tt.w, tt.h); (err == nil) != tt.ok {
			t.Errorf("%dx%d: err = %v", tt.w, tt.h, err)
		}
	}
}
