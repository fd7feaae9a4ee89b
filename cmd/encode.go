package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/jakegut/goh3/qpack"
	"github.com/spf13/cobra"
)

var (
	encodeCapacity       uint64
	encodeBlockedStreams uint64
	encodeImmediateAck   bool
	encodeOutput         string
)

var encodeCmd = &cobra.Command{
	Use:   "encode <file>",
	Short: "Encode header lists into a stream-framed QPACK capture",
	Long: `Reads header lists from a text file: one "name: value" line per
field, a blank line between header blocks. Each block is encoded on
its own stream; encoder stream instructions are framed as stream 0
records preceding the block that produced them.`,
	Args: cobra.ExactArgs(1),
	RunE: runEncode,
}

func init() {
	encodeCmd.Flags().Uint64Var(&encodeCapacity, "capacity", 4096, "dynamic table capacity in bytes")
	encodeCmd.Flags().Uint64Var(&encodeBlockedStreams, "blocked-streams", 100, "maximum number of blocked streams")
	encodeCmd.Flags().BoolVar(&encodeImmediateAck, "ack", false, "assume every header block is acknowledged immediately")
	encodeCmd.Flags().StringVarP(&encodeOutput, "output", "o", "out.qpack", "output file")
}

type logStreamErrors struct{}

func (logStreamErrors) OnDecoderStreamError(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
}

func readHeaderLists(file *os.File) ([][]qpack.HeaderField, error) {
	var (
		lists   [][]qpack.HeaderField
		current []qpack.HeaderField
	)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			if len(current) > 0 {
				lists = append(lists, current)
				current = nil
			}
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		// Pseudo-headers start with a colon; cut after it.
		if ok && name == "" {
			name, value, ok = strings.Cut(line[1:], ":")
			name = ":" + name
		}
		if !ok {
			return nil, fmt.Errorf("malformed header line: %q", line)
		}
		current = append(current, qpack.NewHeaderField(name, strings.TrimSpace(value)))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(current) > 0 {
		lists = append(lists, current)
	}
	return lists, nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	lists, err := readHeaderLists(file)
	if err != nil {
		return err
	}

	out, err := os.Create(encodeOutput)
	if err != nil {
		return err
	}
	defer out.Close()

	var instructions bytes.Buffer
	encoder := qpack.NewEncoder(&instructions, logStreamErrors{})
	encoder.SetMaximumBlockedStreams(encodeBlockedStreams)
	if err := encoder.SetMaximumDynamicTableCapacity(encodeCapacity); err != nil {
		return err
	}

	for i, headers := range lists {
		streamID := uint64(i + 1)
		block, err := encoder.EncodeHeaderList(streamID, headers)
		if err != nil {
			return err
		}
		if instructions.Len() > 0 {
			if err := writeRecord(out, 0, instructions.Bytes()); err != nil {
				return err
			}
			instructions.Reset()
		}
		if err := writeRecord(out, streamID, block); err != nil {
			return err
		}
		if encodeImmediateAck {
			if err := encoder.OnHeaderAcknowledgement(streamID); err != nil && err != qpack.ErrUnexpectedHeaderAcknowledgement {
				return err
			}
		}
	}
	return nil
}
