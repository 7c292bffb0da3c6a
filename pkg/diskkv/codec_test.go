package diskkv

import (
	"bytes"
	"testing"
)

func Test_Codec_RoundTrip_SingleFile(t *testing.T) {
	var buf bytes.Buffer

	buf.Write(encodeHeader(catalogVersion, SingleFile))

	metaBytes, err := encodeMeta(map[string]any{"a": float64(1)})
	if err != nil {
		t.Fatalf("encodeMeta: %v", err)
	}

	if err := writeRecord(&buf, SingleFile, "x", metaBytes, []byte("hi")); err != nil {
		t.Fatalf("writeRecord: %v", err)
	}

	if err := writeRecord(&buf, SingleFile, "y", nil, []byte("there")); err != nil {
		t.Fatalf("writeRecord: %v", err)
	}

	dec, err := newDecoder(&buf)
	if err != nil {
		t.Fatalf("newDecoder: %v", err)
	}

	if dec.versionMismatch {
		t.Fatalf("unexpected version mismatch")
	}

	rec1, done, err := dec.next()
	if done || err != nil {
		t.Fatalf("rec1: done=%v err=%v", done, err)
	}

	if rec1.Key != "x" || string(rec1.Value) != "hi" {
		t.Fatalf("rec1=%+v", rec1)
	}

	meta1, err := decodeMeta(rec1.Meta)
	if err != nil {
		t.Fatalf("decodeMeta: %v", err)
	}

	if meta1["a"] != float64(1) {
		t.Fatalf("meta1=%v", meta1)
	}

	rec2, done, err := dec.next()
	if done || err != nil {
		t.Fatalf("rec2: done=%v err=%v", done, err)
	}

	if rec2.Key != "y" || string(rec2.Value) != "there" || rec2.Meta != nil {
		t.Fatalf("rec2=%+v", rec2)
	}

	_, done, err = dec.next()
	if !done || err != nil {
		t.Fatalf("expected clean end, got done=%v err=%v", done, err)
	}
}

func Test_Codec_RoundTrip_MultiFile_Has_No_Value_Bytes(t *testing.T) {
	var buf bytes.Buffer

	buf.Write(encodeHeader(catalogVersion, MultiFile))

	metaBytes, err := encodeMeta(map[string]any{"file": "ab/cdef"})
	if err != nil {
		t.Fatalf("encodeMeta: %v", err)
	}

	if err := writeRecord(&buf, MultiFile, "k", metaBytes, []byte("ignored")); err != nil {
		t.Fatalf("writeRecord: %v", err)
	}

	dec, err := newDecoder(&buf)
	if err != nil {
		t.Fatalf("newDecoder: %v", err)
	}

	rec, done, err := dec.next()
	if done || err != nil {
		t.Fatalf("rec: done=%v err=%v", done, err)
	}

	if rec.Value != nil {
		t.Fatalf("expected no inline value in MultiFile mode, got %q", rec.Value)
	}

	meta, err := decodeMeta(rec.Meta)
	if err != nil {
		t.Fatalf("decodeMeta: %v", err)
	}

	if meta["file"] != "ab/cdef" {
		t.Fatalf("meta=%v", meta)
	}
}

func Test_Codec_VersionMismatch_Is_Clean_Not_An_Error(t *testing.T) {
	buf := bytes.NewBuffer(encodeHeader(0, SingleFile))

	dec, err := newDecoder(buf)
	if err != nil {
		t.Fatalf("newDecoder: %v", err)
	}

	if !dec.versionMismatch {
		t.Fatalf("expected version mismatch")
	}
}

func Test_Codec_Empty_Catalog_Is_Clean_End(t *testing.T) {
	buf := bytes.NewBuffer(encodeHeader(catalogVersion, SingleFile))

	dec, err := newDecoder(buf)
	if err != nil {
		t.Fatalf("newDecoder: %v", err)
	}

	_, done, err := dec.next()
	if !done || err != nil {
		t.Fatalf("done=%v err=%v", done, err)
	}
}

func Test_Codec_TooLarge_Key_Is_Rejected(t *testing.T) {
	var buf bytes.Buffer

	bigKey := make([]byte, maxU16Len+1)

	err := writeRecord(&buf, SingleFile, string(bigKey), nil, nil)
	if err == nil {
		t.Fatalf("expected ErrTooLarge")
	}
}

func Test_Codec_Malformed_Catalog_Ends_Like_EOF(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodeHeader(catalogVersion, SingleFile))
	// A key length prefix claiming 10 bytes but only 2 are present.
	buf.Write([]byte{0x0A, 0x00, 0x01, 0x02})

	dec, err := newDecoder(&buf)
	if err != nil {
		t.Fatalf("newDecoder: %v", err)
	}

	_, done, err := dec.next()
	if !done {
		t.Fatalf("expected done=true on malformed record")
	}

	if err == nil {
		t.Fatalf("expected a non-nil error describing the truncation")
	}
}
