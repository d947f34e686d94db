// Package console prints command results for humans.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/twi"
)

const (
	PictoFinish   = "🏁"
	PictoStop     = "🚫"
	PictoGhost    = "👻"
	PictoCalendar = "📅"
	PictoPin      = "📌"
	PictoMemory   = "💾"
)

var (
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	White  = color.New(color.FgHiWhite).SprintFunc()
)

var writer io.Writer = os.Stdout

// Exit ends the command with msg on stderr and the given status code.
func Exit(code int, msg string, args ...any) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

func Infof(msg string, args ...any) {
	_, _ = fmt.Fprintf(writer, "%s %s\n", White("..."), fmt.Sprintf(msg, args...))
}

func PInfof(picto, msg string, args ...any) {
	_, _ = fmt.Fprintf(writer, "%s %s\n", picto, fmt.Sprintf(msg, args...))
}

// Dump prints data sixteen bytes a line, labelled from offset.
func Dump(offset int, data []byte) {
	for i := 0; i < len(data); i += 16 {
		line := data[i:min(i+16, len(data))]
		_, _ = fmt.Fprintf(writer, "%08x  % x\n", offset+i, line)
	}
}

// Grid prints the scan result the way i2cdetect does.
func Grid(found []twi.Address) {
	present := make(map[twi.Address]bool, len(found))
	for _, a := range found {
		present[a] = true
	}
	var b strings.Builder
	b.WriteString("     0  1  2  3  4  5  6  7  8  9  a  b  c  d  e  f\n")
	for row := 0; row < 8; row++ {
		fmt.Fprintf(&b, "%02x: ", row*16)
		for col := 0; col < 16; col++ {
			a := twi.Address(row*16 + col)
			if present[a] {
				b.WriteString(Green(fmt.Sprintf("%02x", uint8(a))))
			} else {
				b.WriteString("--")
			}
			b.WriteByte(' ')
		}
		b.WriteByte('\n')
	}
	_, _ = fmt.Fprint(writer, b.String())
}
