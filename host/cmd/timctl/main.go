// Command timctl talks to the timer firmware over a serial port: it prints
// the dictionary, applies board files, runs commands interactively and tunes
// PWM duty cycles from the keyboard.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/mattn/go-colorable"

	"timhal/host/config"
	"timhal/host/mcu"
	"timhal/host/serial"
)

var (
	device  = flag.String("device", "", "Serial device path (default: from -config, else the only port found)")
	list    = flag.Bool("list", false, "List serial ports and exit")
	baud    = flag.Int("baud", 0, "Baud rate (default: from -config, else 250000)")
	board   = flag.String("config", "", "Board file to apply after connecting")
	timeout = flag.Duration("timeout", 2*time.Second, "Per command timeout")
	verbose = flag.Bool("verbose", false, "Enable verbose output")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: timctl [flags]               interactive console\n")
	fmt.Fprintf(os.Stderr, "       timctl [flags] tune OID CH    adjust a PWM duty from the keyboard\n\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *list {
		ports, err := serial.ListPorts()
		if err != nil {
			fatalf("%v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	var b *config.Board
	if *board != "" {
		var err error
		if b, err = config.LoadFile(*board); err != nil {
			fatalf("%v", err)
		}
	}

	cfg := serial.DefaultConfig("")
	if b != nil {
		if b.Device != "" {
			cfg.Device = b.Device
		}
		cfg.Baud = b.Baud
	}
	if *device != "" {
		cfg.Device = *device
	}
	if *baud != 0 {
		cfg.Baud = *baud
	}
	if cfg.Device == "" {
		var err error
		if cfg.Device, err = serial.DetectPort(); err != nil {
			fatalf("%v (use -device)", err)
		}
	}

	logf("connecting to %s at %d baud", cfg.Device, cfg.Baud)
	m, err := mcu.Connect(cfg)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer m.Close()
	if *verbose {
		m.Logf = logf
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = m.RetrieveDictionary(ctx)
	cancel()
	if err != nil {
		fatalf("retrieve dictionary: %v", err)
	}
	d := m.Dictionary()
	fmt.Printf("Connected: %s (%s)\n", d.ConfigString("MCU"), d.Version)

	if b != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := m.ApplyBoard(ctx, b)
		cancel()
		if err != nil {
			fatalf("apply %s: %v", *board, err)
		}
		fmt.Printf("Applied %s: %d timers\n", *board, len(b.Timers))
	}

	if args := flag.Args(); len(args) > 0 {
		if args[0] != "tune" || len(args) != 3 {
			usage()
			os.Exit(2)
		}
		oid, err1 := strconv.ParseUint(args[1], 0, 8)
		ch, err2 := strconv.ParseUint(args[2], 0, 8)
		if err1 != nil || err2 != nil {
			fatalf("tune: OID and CH must be numbers")
		}
		if err := tune(m, uint8(oid), uint8(ch)); err != nil {
			fatalf("tune: %v", err)
		}
		return
	}

	console(m, os.Stdin, colorable.NewColorableStdout())
}

func console(m *mcu.MCU, in io.Reader, out io.Writer) {
	fmt.Fprintln(out, "Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		fields, err := shlex.Split(scanner.Text())
		if err != nil {
			printErr(out, err)
			continue
		}
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit", "q":
			return
		case "help", "?":
			printHelp(out)
		case "dict":
			m.Dictionary().WriteSummary(out)
		case "raw":
			raw := m.DictionaryRaw()
			fmt.Fprintf(out, "Raw dictionary data (%d bytes):\n%s\n", len(raw), raw)
		case "apply":
			if len(fields) != 2 {
				fmt.Fprintln(out, "usage: apply FILE")
				continue
			}
			if err := apply(m, fields[1]); err != nil {
				printErr(out, err)
			}
		default:
			if err := run(m, out, fields); err != nil {
				printErr(out, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		fatalf("reading input: %v", err)
	}
}

// printErr writes err in red. Output goes through go-colorable so the
// escape codes also work on Windows consoles.
func printErr(out io.Writer, err error) {
	fmt.Fprintf(out, "\x1b[31mError: %v\x1b[0m\n", err)
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "\nAvailable commands:")
	fmt.Fprintln(out, "  help              - Show this help message")
	fmt.Fprintln(out, "  dict              - Print dictionary summary")
	fmt.Fprintln(out, "  raw               - Print raw dictionary data")
	fmt.Fprintln(out, "  apply FILE        - Configure timers from a board file")
	fmt.Fprintln(out, "  NAME ARGS...      - Send any dictionary command, e.g.")
	fmt.Fprintln(out, "                      config_pwm_generator 1 TIM3 1000000 1000")
	fmt.Fprintln(out, "  quit/exit/q       - Exit the program")
	fmt.Fprintln(out)
}

func apply(m *mcu.MCU, path string) error {
	b, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return m.ApplyBoard(ctx, b)
}

// run sends one console command. Queries print their response; other
// commands print only errors.
func run(m *mcu.MCU, out io.Writer, fields []string) error {
	args, err := parseArgs(m.Dictionary(), fields[1:])
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if want, ok := responseFor[fields[0]]; ok {
		resp, err := m.Query(ctx, want, fields[0], args...)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, formatResponse(resp))
		return nil
	}
	return m.Exec(ctx, settle, fields[0], args...)
}

// settle is how long a command without a response is watched for errors.
const settle = 50 * time.Millisecond

// responseFor maps query commands to the response they produce.
var responseFor = map[string]string{
	"get_config":            "config",
	"query_timer":           "timer_state",
	"query_counter_reached": "counter_reached",
	"query_pwm_measure":     "pwm_measure_state",
	"query_encoder":         "encoder_state",
}

// parseArgs accepts numbers in any base strconv understands, and names from
// any dictionary enumeration such as TIM3 or both.
func parseArgs(d *mcu.Dictionary, fields []string) ([]uint32, error) {
	args := make([]uint32, 0, len(fields))
	for _, f := range fields {
		if v, err := strconv.ParseUint(f, 0, 32); err == nil {
			args = append(args, uint32(v))
			continue
		}
		v, ok := lookupEnum(d, f)
		if !ok {
			return nil, fmt.Errorf("bad argument %q", f)
		}
		args = append(args, v)
	}
	return args, nil
}

func lookupEnum(d *mcu.Dictionary, name string) (uint32, bool) {
	for enum := range d.Enumerations {
		if v, ok := d.Enum(enum, name); ok {
			return v, true
		}
	}
	return 0, false
}

func formatResponse(r *mcu.Response) string {
	var sb strings.Builder
	sb.WriteString(r.Name)
	for _, k := range r.Fields {
		if data, ok := r.Data[k]; ok {
			fmt.Fprintf(&sb, " %s=%q", k, data)
			continue
		}
		fmt.Fprintf(&sb, " %s=%d", k, r.Values[k])
	}
	return sb.String()
}

func logf(format string, args ...interface{}) {
	if *verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
