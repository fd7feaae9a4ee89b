package cmd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/jakegut/goh3/qpack"
	"github.com/spf13/cobra"
)

var (
	decodeCapacity       uint64
	decodeBlockedStreams uint64
	decodeMaxListSize    uint64
)

var decodeCmd = &cobra.Command{
	Use:   "decode <file>",
	Short: "Decode a stream-framed QPACK capture",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

func init() {
	decodeCmd.Flags().Uint64Var(&decodeCapacity, "capacity", 4096, "dynamic table capacity in bytes")
	decodeCmd.Flags().Uint64Var(&decodeBlockedStreams, "blocked-streams", 100, "maximum number of blocked streams")
	decodeCmd.Flags().Uint64Var(&decodeMaxListSize, "max-list-size", 1<<20, "maximum decoded header list size in bytes")
}

// record is one frame of the interop capture format: stream ID,
// length, payload.
type record struct {
	streamID uint64
	data     []byte
}

func readRecord(r io.Reader) (*record, error) {
	prefix := make([]byte, 12)
	if _, err := io.ReadFull(r, prefix); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, errors.New("truncated record prefix")
	}
	streamID := binary.BigEndian.Uint64(prefix[:8])
	length := binary.BigEndian.Uint32(prefix[8:12])
	data := make([]byte, int(length))
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, errors.New("truncated record payload")
	}
	return &record{streamID: streamID, data: data}, nil
}

func writeRecord(w io.Writer, streamID uint64, data []byte) error {
	prefix := make([]byte, 12)
	binary.BigEndian.PutUint64(prefix[:8], streamID)
	binary.BigEndian.PutUint32(prefix[8:12], uint32(len(data)))
	if _, err := w.Write(prefix); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// printVisitor prints each decoded header list as it becomes
// available; blocked streams print in unblocking order.
type printVisitor struct {
	streamID uint64
}

func (v *printVisitor) OnHeadersDecoded(headers qpack.HeaderList) {
	fmt.Printf("stream %d (%d compressed, %d uncompressed bytes):\n",
		v.streamID, headers.CompressedBytes(), headers.UncompressedBytes())
	for _, f := range headers.Fields() {
		fmt.Printf("  %s: %s\n", f.Name, f.Value)
	}
}

func (v *printVisitor) OnHeaderDecodingError(err error) {
	log.Fatalf("stream %d: decoding header block: %s", v.streamID, err)
}

type fatalStreamErrors struct{}

func (fatalStreamErrors) OnEncoderStreamError(err error) {
	log.Fatalf("%s", err)
}

func runDecode(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := qpack.NewDecoder(decodeCapacity, decodeBlockedStreams, fatalStreamErrors{})
	decoder.SetDecoderStreamWriter(io.Discard)

	for {
		rec, err := readRecord(file)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if rec.streamID == 0 {
			decoder.DecodeEncoderStreamData(rec.data)
			continue
		}
		acc := qpack.NewDecodedHeadersAccumulator(
			rec.streamID, decoder, &printVisitor{streamID: rec.streamID}, decodeMaxListSize)
		acc.Decode(rec.data)
		acc.EndHeaderBlock()
	}
}
