// pywasm runs structured-bytecode programs on the stack machine.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tliron/commonlog"

	"github.com/lucasmelin/python-webassembly/manifest"
	"github.com/lucasmelin/python-webassembly/store"
	"github.com/lucasmelin/python-webassembly/vm"
	"github.com/lucasmelin/python-webassembly/vm/wire"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output (per-instruction trace)")
	saveName := flag.String("save", "", "Save a snapshot under this name after the run")
	restoreName := flag.String("restore", "", "Inspect the snapshot stored under this name")
	dbPath := flag.String("db", "pywasm.db", "Snapshot database path")
	listSnaps := flag.Bool("list", false, "List stored snapshots")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pywasm [options] [dir]\n\n")
		fmt.Fprintf(os.Stderr, "Runs the program described by dir/pywasm.toml against the built-in\n")
		fmt.Fprintf(os.Stderr, "function table (0: update_position, 1: display). Without a directory,\n")
		fmt.Fprintf(os.Stderr, "runs the bundled player-motion demo.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pywasm                     # Run the demo\n")
		fmt.Fprintf(os.Stderr, "  pywasm -v ./examples/demo  # Run a manifest with tracing\n")
		fmt.Fprintf(os.Stderr, "  pywasm -save run1          # Run the demo, snapshot the machine\n")
		fmt.Fprintf(os.Stderr, "  pywasm -list               # Show stored snapshots\n")
	}
	flag.Parse()

	verbosity := 1
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	if *listSnaps {
		if err := listSnapshots(*dbPath); err != nil {
			fail(err)
		}
		return
	}
	if *restoreName != "" {
		if err := inspectSnapshot(*dbPath, *restoreName); err != nil {
			fail(err)
		}
		return
	}

	m, code, err := setup(flag.Arg(0), *verbose)
	if err != nil {
		fail(err)
	}

	if err := m.Run(code); err != nil {
		fail(err)
	}
	report(m)

	if *saveName != "" {
		if err := saveSnapshot(*dbPath, *saveName, m); err != nil {
			fail(err)
		}
		fmt.Printf("Saved snapshot %q to %s\n", *saveName, *dbPath)
	}
}

// setup builds the machine and program, either from a manifest directory
// or from the bundled demo.
func setup(dir string, verbose bool) (*vm.Machine, []vm.Instruction, error) {
	if dir == "" {
		m := vm.NewMachine(builtinFunctions(), traceOpts(verbose)...)
		code, err := demoProgram(m)
		return m, code, err
	}

	mf, err := manifest.Load(dir)
	if err != nil {
		return nil, nil, err
	}
	opts := []vm.Option{vm.WithMemorySize(mf.Machine.MemorySize)}
	if verbose || mf.Machine.Trace {
		opts = append(opts, vm.WithTrace())
	}
	m := vm.NewMachine(builtinFunctions(), opts...)
	for _, cell := range mf.Seed {
		if err := m.Store(cell.Addr, cell.Value); err != nil {
			return nil, nil, fmt.Errorf("seeding address %d: %w", cell.Addr, err)
		}
	}

	data, err := os.ReadFile(mf.ProgramPath())
	if err != nil {
		return nil, nil, err
	}
	code, err := wire.UnmarshalProgram(data)
	if err != nil {
		return nil, nil, err
	}
	return m, code, nil
}

func traceOpts(verbose bool) []vm.Option {
	if verbose {
		return []vm.Option{vm.WithTrace()}
	}
	return nil
}

func report(m *vm.Machine) {
	values := m.StackValues()
	if len(values) == 0 {
		return
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.String()
	}
	fmt.Printf("Stack: [%s]\n", strings.Join(parts, " "))
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// ---------------------------------------------------------------------------
// Built-in function table
// ---------------------------------------------------------------------------

// builtinFunctions is the table available to every run:
//
//	0: update_position(x, v, dt) -> x + v*dt
//	1: display(x), draws the player at column x
func builtinFunctions() []vm.Function {
	updatePosition := &vm.Defined{
		Params:  3,
		Returns: true,
		Code: []vm.Instruction{
			vm.LocalGet(0), // x
			vm.LocalGet(1), // v
			vm.LocalGet(2), // dt
			vm.Mul(),
			vm.Add(),
		},
	}

	display := &vm.Import{
		Params:  1,
		Returns: false,
		Call: func(args []vm.Value) (vm.Value, error) {
			col := int(args[0].Float64())
			if col < 0 {
				col = 0
			}
			fmt.Printf("%s<o:>\n", strings.Repeat(" ", col))
			time.Sleep(20 * time.Millisecond)
			return 0, nil
		},
	}

	return []vm.Function{updatePosition, display}
}

// ---------------------------------------------------------------------------
// Demo: a player sliding between walls
// ---------------------------------------------------------------------------

const (
	xAddr = 22
	vAddr = 42
)

// demoProgram seeds position and velocity, then returns a program that
// moves the player until it comes back to column zero, bouncing off the
// right wall at column 70.
func demoProgram(m *vm.Machine) ([]vm.Instruction, error) {
	if err := m.Store(xAddr, 2.0); err != nil {
		return nil, err
	}
	if err := m.Store(vAddr, 3.0); err != nil {
		return nil, err
	}

	code := []vm.Instruction{
		vm.Block(
			vm.Loop(
				// Draw the player at the current position.
				vm.ConstFloat(xAddr), vm.Load(), vm.Call(1),
				// Done once the player is back at the left wall.
				vm.ConstFloat(xAddr), vm.Load(), vm.ConstFloat(0), vm.LE(), vm.BrIf(1),
				// x = update_position(x, v, 0.1)
				vm.ConstFloat(xAddr),
				vm.ConstFloat(xAddr), vm.Load(),
				vm.ConstFloat(vAddr), vm.Load(),
				vm.ConstFloat(0.1),
				vm.Call(0),
				vm.Store(),
				// Bounce off the right wall: v = -v when x >= 70.
				vm.Block(
					vm.ConstFloat(xAddr), vm.Load(), vm.ConstFloat(70), vm.GE(),
					vm.Block(
						vm.BrIf(0),
						vm.Br(1),
					),
					vm.ConstFloat(vAddr),
					vm.ConstFloat(0),
					vm.ConstFloat(vAddr), vm.Load(),
					vm.Sub(),
					vm.Store(),
				),
			),
		),
	}
	return code, nil
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

func saveSnapshot(dbPath, name string, m *vm.Machine) error {
	data, err := wire.MarshalSnapshot(wire.CaptureSnapshot(m))
	if err != nil {
		return err
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.Save(name, m.ID(), data)
}

func inspectSnapshot(dbPath, name string) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	data, err := st.Load(name)
	if err != nil {
		return err
	}
	snap, err := wire.UnmarshalSnapshot(data)
	if err != nil {
		return err
	}
	m, err := snap.Restore(builtinFunctions())
	if err != nil {
		return err
	}
	fmt.Printf("Snapshot %q: machine %s, memory %d bytes, stack depth %d\n",
		name, snap.ID, m.MemorySize(), m.StackDepth())
	report(m)
	return nil
}

func listSnapshots(dbPath string) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.List()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No snapshots stored.")
		return nil
	}
	for _, info := range infos {
		fmt.Printf("%-20s machine %s  %s\n", info.Name, info.MachineID, info.CreatedAt)
	}
	return nil
}
