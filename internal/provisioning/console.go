package provisioning

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// errConsoleRead wraps a failure reading the console's input stream.
var errConsoleRead = fmt.Errorf("provisioning: read console input")

// Console is the blocking interactive provisioning shell (§6:
// "Provisioning console. Serial CLI offering two commands: set_name
// <name>, set_floor <n>"). It uses a plain bufio.Scanner REPL loop rather
// than a full line-editing library, since only two commands with no
// history/completion are required.
type Console struct {
	in    io.Reader
	out   io.Writer
	store Store
	draft State
}

// NewConsole builds a Console reading commands from in and writing prompts
// and errors to out.
func NewConsole(in io.Reader, out io.Writer, store Store) *Console {
	return &Console{in: in, out: out, store: store}
}

// Run blocks reading lines until both set_name and set_floor have been
// issued with valid arguments, at which point it commits the draft state
// and returns it (§6: "Writing both triggers a commit and reboot" --
// the actual reboot is the caller's responsibility once Run returns nil).
// Run also returns if the input stream is closed before both fields are
// set, in which case the returned error is non-nil and the caller must
// not proceed to normal operation (§7: no NVS write failure policy
// applies here, but incomplete provisioning leaves the device unbootable
// by identical reasoning).
func (c *Console) Run() (State, error) {
	fmt.Fprintln(c.out, "provisioning console. commands: set_name <name>, set_floor <n>")
	fmt.Fprint(c.out, "> ")

	scanner := bufio.NewScanner(c.in)
	haveName, haveFloor := false, false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			if err := c.dispatch(line, &haveName, &haveFloor); err != nil {
				fmt.Fprintln(c.out, "error:", err)
			}
		}

		if haveName && haveFloor {
			if err := c.store.Save(c.draft); err != nil {
				fmt.Fprintln(c.out, "commit failed:", err)
				return State{}, fmt.Errorf("provisioning: commit: %w", err)
			}
			fmt.Fprintln(c.out, "committed, rebooting")
			return c.draft, nil
		}

		fmt.Fprint(c.out, "> ")
	}

	if err := scanner.Err(); err != nil {
		return State{}, fmt.Errorf("%w: %w", errConsoleRead, err)
	}
	return State{}, fmt.Errorf("provisioning: console closed before both fields were set")
}

func (c *Console) dispatch(line string, haveName, haveFloor *bool) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "set_name":
		if len(fields) != 2 {
			return fmt.Errorf("usage: set_name <name>")
		}
		name := fields[1]
		if len(name) > MaxDeviceNameLen {
			return ErrDeviceNameTooLong
		}
		c.draft.DeviceName = name
		*haveName = true

	case "set_floor":
		if len(fields) != 2 {
			return fmt.Errorf("usage: set_floor <n>")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("set_floor: %q is not an integer", fields[1])
		}
		if n == 0 {
			return ErrFloorZero
		}
		if n > MaxAbsFloor || n < -MaxAbsFloor {
			return ErrFloorOutOfRange
		}
		c.draft.Floor = int32(n)
		*haveFloor = true

	default:
		return fmt.Errorf("unrecognized command %q", fields[0])
	}
	return nil
}
