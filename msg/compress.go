package msg

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/golang/snappy"

	"github.com/10gen/mongo-go-query/internal"
)

// Compressor handles compressing and decompressing message bodies.
type Compressor interface {
	// ID is the wire identifier of the compressor.
	ID() uint8
	// Name is the name of the compressor.
	Name() string
	// Compress compresses the bytes and writes them to the writer.
	Compress([]byte, io.Writer) error
	// Decompress fills the bytes from the reader.
	Decompress(io.Reader, []byte) error
}

// NewSnappyCompressor creates a new compressor using the snappy format.
func NewSnappyCompressor() Compressor {
	return &snappyCompressor{}
}

type snappyCompressor struct{}

func (c *snappyCompressor) ID() uint8 {
	return 1
}

func (c *snappyCompressor) Name() string {
	return "snappy"
}

func (c *snappyCompressor) Compress(in []byte, w io.Writer) error {
	_, err := w.Write(snappy.Encode(nil, in))
	return err
}

func (c *snappyCompressor) Decompress(r io.Reader, b []byte) error {
	var compressed bytes.Buffer
	_, err := compressed.ReadFrom(r)
	if err != nil {
		return internal.WrapError(err, "failed reading snappy block")
	}

	out, err := snappy.Decode(b[:0], compressed.Bytes())
	if err != nil {
		return internal.WrapError(err, "failed decompressing using snappy")
	}
	if len(out) != len(b) {
		return fmt.Errorf("snappy block decompressed to %d bytes, expected %d", len(out), len(b))
	}
	copy(b, out)
	return nil
}

// NewZLibCompressor creates a new compressor using the zlib format.
func NewZLibCompressor() Compressor {
	return &zlibCompressor{-1}
}

// NewZLibCompressorWithLevel creates a new compressor using the zlib
// format at the specified level.
func NewZLibCompressorWithLevel(level int) Compressor {
	return &zlibCompressor{level}
}

type zlibCompressor struct {
	level int
}

func (c *zlibCompressor) ID() uint8 {
	return 2
}

func (c *zlibCompressor) Name() string {
	return "zlib"
}

func (c *zlibCompressor) Compress(in []byte, w io.Writer) error {
	var zlibWriter io.WriteCloser
	if c.level < 0 {
		zlibWriter = zlib.NewWriter(w)
	} else {
		var err error
		zlibWriter, err = zlib.NewWriterLevel(w, c.level)
		if err != nil {
			return err
		}
	}
	_, err := zlibWriter.Write(in)
	zlibWriter.Close()
	return err
}

func (c *zlibCompressor) Decompress(r io.Reader, b []byte) error {
	zlibReader, err := zlib.NewReader(r)
	if err != nil {
		return internal.WrapError(err, "failed creating zlib reader")
	}

	if _, err := io.ReadFull(zlibReader, b); err != nil {
		zlibReader.Close()
		return internal.WrapError(err, "failed decompressing using zlib")
	}
	zlibReader.Close()
	return nil
}

// NewCompressionCodec wraps a codec such that messages travel as
// OP_COMPRESSED frames. Incoming OP_COMPRESSED frames are accepted
// regardless of which compressor produced them, provided it is one of
// the compressors given here.
func NewCompressionCodec(inner Codec, compressor Compressor, others ...Compressor) Codec {
	byID := map[uint8]Compressor{compressor.ID(): compressor}
	for _, c := range others {
		byID[c.ID()] = c
	}
	return &compressionCodec{
		inner:      inner,
		compressor: compressor,
		byID:       byID,
	}
}

type compressionCodec struct {
	inner      Codec
	compressor Compressor
	byID       map[uint8]Compressor
}

func (c *compressionCodec) Encode(writer io.Writer, msgs ...Message) error {
	b := make([]byte, 0, defaultEncodeBufferSize)

	for _, m := range msgs {
		plain, err := encodeMessage(nil, m)
		if err != nil {
			return err
		}

		// the body is everything after the standard 16 byte header
		originalOpcode := readInt32(plain, 12)
		body := plain[16:]

		start := len(b)
		b = addHeader(b, 0, readInt32(plain, 4), readInt32(plain, 8), int32(compressedOpcode))
		b = addInt32(b, originalOpcode)
		b = addInt32(b, int32(len(body)))
		b = append(b, byte(c.compressor.ID()))

		var compressed bytes.Buffer
		err = c.compressor.Compress(body, &compressed)
		if err != nil {
			return internal.WrapError(err, "unable to compress message")
		}
		b = append(b, compressed.Bytes()...)

		setInt32(b, int32(start), int32(len(b)-start))
	}

	_, err := writer.Write(b)
	if err != nil {
		return internal.WrapError(err, "unable to encode messages")
	}
	return nil
}

func (c *compressionCodec) Decode(reader io.Reader) (Message, error) {
	lengthBytes := make([]byte, 4)
	_, err := io.ReadFull(reader, lengthBytes)
	if err != nil {
		return nil, internal.WrapError(err, "unable to decode message length")
	}

	length := readInt32(lengthBytes, 0)
	b := make([]byte, length)
	copy(b, lengthBytes)

	_, err = io.ReadFull(reader, b[4:])
	if err != nil {
		return nil, internal.WrapError(err, "unable to decode message")
	}

	if opcode(readInt32(b, 12)) != compressedOpcode {
		return decodeMessage(b)
	}

	originalOpcode := readInt32(b, 16)
	uncompressedSize := readInt32(b, 20)
	compressorID := b[24]

	compressor, ok := c.byID[compressorID]
	if !ok {
		return nil, fmt.Errorf("unknown compressor id %d", compressorID)
	}

	body := make([]byte, uncompressedSize)
	err = compressor.Decompress(bytes.NewReader(b[25:]), body)
	if err != nil {
		return nil, err
	}

	plain := make([]byte, 0, 16+len(body))
	plain = addHeader(plain, 16+int32(len(body)), readInt32(b, 4), readInt32(b, 8), originalOpcode)
	plain = append(plain, body...)

	return decodeMessage(plain)
}
