// Package main is the entry point for the emberdbg debug console.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/mcuforge/ember/internal/config"
	"github.com/mcuforge/ember/internal/debug"
	"github.com/mcuforge/ember/internal/event"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type options struct {
	ConfigPath string
	Port       string
	Baud       int
	GDBPath    string
	ELFFile    string
	Server     string
	LogLevel   string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	level, err := log.ParseLevel(opts.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q\n", opts.LogLevel)
		return 1
	}
	log.SetLevel(level)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load config: %v\n", err)
		return 1
	}

	bus := event.NewBus()
	session := debug.NewSession(cfg, bus)

	// Ensure cleanup on all exit paths
	defer session.Disconnect()

	if _, err := bus.Subscribe("debug.**", printEvent); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to subscribe: %v\n", err)
		return 1
	}

	if cfg.Breakpoints.PersistPath != "" {
		if err := session.LoadBreakpoints(); err != nil {
			log.Warnf("could not restore breakpoints: %v", err)
		}
	}

	// Handle signals for graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-signals
		session.Disconnect()
		os.Exit(0)
	}()

	if err := connect(session, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	repl(session)

	if cfg.Breakpoints.PersistPath != "" {
		if err := session.SaveBreakpoints(); err != nil {
			log.Warnf("could not persist breakpoints: %v", err)
		}
	}
	return 0
}

// connect attaches the transport selected by the flags. With neither a
// serial port nor an ELF file given the console starts detached; breakpoints
// can still be managed and a connection made later.
func connect(session *debug.Session, opts options) error {
	switch {
	case opts.Port != "":
		return session.ConnectSerial(opts.Port, opts.Baud)
	case opts.ELFFile != "":
		return session.ConnectGDB(opts.GDBPath, opts.ELFFile, opts.Server)
	default:
		fmt.Println("No transport selected; use -port or -elf to connect.")
		return nil
	}
}

// repl reads commands from stdin until quit or EOF.
func repl(session *debug.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}

		cmd, args, _ := strings.Cut(line, " ")
		args = strings.TrimSpace(args)

		if cmd == "quit" || cmd == "exit" {
			return
		}
		dispatch(session, cmd, args)
		fmt.Print("> ")
	}
}

func dispatch(session *debug.Session, cmd, args string) {
	switch cmd {
	case "run":
		if !session.StartDebugging() {
			fmt.Println("cannot start: session is", session.State())
		}
	case "continue", "c":
		if !session.ContinueExecution() {
			fmt.Println("cannot continue: session is", session.State())
		}
	case "pause":
		if !session.PauseExecution() {
			fmt.Println("cannot pause: session is", session.State())
		}
	case "over", "n":
		if !session.StepOver() {
			fmt.Println("cannot step: session is", session.State())
		}
	case "into", "s":
		if !session.StepInto() {
			fmt.Println("cannot step: session is", session.State())
		}
	case "out":
		if !session.StepOut() {
			fmt.Println("cannot step: session is", session.State())
		}
	case "stop":
		if !session.StopDebugging() {
			fmt.Println("no active session")
		}
	case "break", "b":
		addBreakpoint(session, args)
	case "del":
		if id, err := strconv.Atoi(args); err != nil || !session.RemoveBreakpoint(id) {
			fmt.Println("no breakpoint", args)
		}
	case "toggle":
		if id, err := strconv.Atoi(args); err != nil || !session.ToggleBreakpoint(id) {
			fmt.Println("no breakpoint", args)
		}
	case "bps":
		listBreakpoints(session, args)
	case "watch":
		if !session.AddWatch(args) {
			fmt.Println("already watching", args)
		}
	case "unwatch":
		if !session.RemoveWatch(args) {
			fmt.Println("not watching", args)
		}
	case "watches":
		for _, v := range session.WatchedVariables() {
			fmt.Printf("  %s = %s (%s)\n", v.Name, v.Value, v.Type)
		}
	case "locals":
		for _, v := range session.LocalVariables() {
			fmt.Printf("  %s = %s (%s)\n", v.Name, v.Value, v.Type)
		}
	case "eval", "p":
		if !session.EvaluateExpression(args) {
			fmt.Println("not connected")
		}
	case "stack", "bt":
		for _, f := range session.CallStack() {
			fmt.Printf("  #%d %s %s\n", f.Level, f.Function, f.FormatLocation())
		}
	case "frame", "f":
		if level, err := strconv.Atoi(args); err != nil || !session.SetCurrentFrame(level) {
			fmt.Println("no frame", args)
		}
	case "mem":
		session.RefreshMemoryInfo()
		for name, r := range session.MemoryInfo() {
			fmt.Printf("  %s: %d/%d bytes used (%.1f%%)\n", name, r.Used, r.Size, r.UsagePercent())
		}
	case "timeline":
		for _, ev := range session.TimelineEvents() {
			fmt.Printf("  %s %-12s %s\n", ev.Timestamp.Format("15:04:05.000"), ev.Kind, ev.Location)
		}
	case "state":
		fmt.Println(session.State())
	case "help", "?":
		printHelp()
	default:
		fmt.Printf("unknown command %q (try help)\n", cmd)
	}
}

// addBreakpoint parses "file:line [if condition]".
func addBreakpoint(session *debug.Session, args string) {
	location, condition, _ := strings.Cut(args, " if ")

	file, lineStr, ok := strings.Cut(location, ":")
	if !ok {
		fmt.Println("usage: break file:line [if condition]")
		return
	}
	line, err := strconv.Atoi(strings.TrimSpace(lineStr))
	if err != nil {
		fmt.Println("usage: break file:line [if condition]")
		return
	}

	bp := session.AddBreakpoint(file, line, strings.TrimSpace(condition))
	fmt.Printf("breakpoint %d at %s:%d\n", bp.ID, bp.File, bp.Line)
}

func listBreakpoints(session *debug.Session, file string) {
	for _, bp := range session.Breakpoints(file) {
		state := "enabled"
		if !bp.Enabled {
			state = "disabled"
		}
		fmt.Printf("  #%d %s:%d %s hits=%d", bp.ID, bp.File, bp.Line, state, bp.HitCount)
		if bp.Condition != "" {
			fmt.Printf(" if %s", bp.Condition)
		}
		fmt.Println()
	}
}

// printEvent renders bus traffic for the console.
func printEvent(topic event.Topic, payload any) {
	switch topic {
	case debug.TopicConsoleOutput:
		fmt.Printf("%v\n", payload)
	case debug.TopicStateChanged:
		change := payload.(debug.StateChange)
		fmt.Printf("[state] %s -> %s\n", change.Old, change.New)
	case debug.TopicBreakpointHit:
		hit := payload.(debug.BreakpointHit)
		fmt.Printf("[break] stopped at %s:%d\n", hit.File, hit.Line)
	case debug.TopicVariableUpdated:
		update := payload.(debug.VariableUpdate)
		fmt.Printf("[watch] %s = %s\n", update.Name, update.Variable.Value)
	case debug.TopicError:
		fmt.Printf("[error] %v\n", payload)
	}
}

func printHelp() {
	fmt.Print(`Commands:
  run                         start or resume execution
  continue, c                 resume after a pause
  pause                       pause the running target
  over, n / into, s / out     step over, into, out
  stop                        stop debugging and disconnect
  break file:line [if expr]   set a breakpoint
  del <id> / toggle <id>      remove or enable/disable a breakpoint
  bps [file]                  list breakpoints
  watch/unwatch <name>        manage watch variables
  watches / locals            show variables
  eval, p <expr>              evaluate an expression
  stack, bt / frame <n>       call stack and frame selection
  mem                         memory usage
  timeline                    execution history
  state                       session state
  quit                        exit
`)
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.Port, "port", "", "Serial port of the target board")
	flag.IntVar(&opts.Baud, "baud", 0, "Serial baud rate (0 uses the configured default)")
	flag.StringVar(&opts.GDBPath, "gdb", "", "Path to the gdb binary")
	flag.StringVar(&opts.ELFFile, "elf", "", "Firmware ELF file for gdb debugging")
	flag.StringVar(&opts.Server, "server", "", "Remote debug server (host:port)")
	flag.StringVar(&opts.LogLevel, "log-level", "warning", "Log level (debug, info, warning, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "emberdbg - interactive debug console for embedded targets\n\n")
		fmt.Fprintf(os.Stderr, "Usage: emberdbg [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  emberdbg -port /dev/ttyACM0              Serial debugging\n")
		fmt.Fprintf(os.Stderr, "  emberdbg -elf fw.elf -server :3333       GDB remote debugging\n")
		fmt.Fprintf(os.Stderr, "  emberdbg                                 Detached, connect later\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("emberdbg %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	return opts
}
