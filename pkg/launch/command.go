package launch

import (
	"fmt"
	"strings"

	"github.com/sidkik/launchpi/pkg/errors"
)

// Mode selects whether the program is started normally, or suspended until a
// debugger attaches.
type Mode int

const (
	// Run starts the program normally.
	Run Mode = iota

	// Debug starts the program with a JDWP agent listening on the debug port.
	// The program doesn't start executing until a debugger attaches.
	Debug
)

func (mode Mode) String() string {
	if mode == Debug {
		return "debug"
	}
	return "run"
}

const (
	defaultJavaCommand = "java"

	debugFlagsFormat = "-Xdebug -Xrunjdwp:transport=dt_socket,address=%d,server=y,suspend=y"

	// The `bin` and `lib` directories are relative to the staging directory.
	// The remote shell expands the wildcard.
	classpathFlag = "-cp bin:lib/'*'"

	// Makes the remote shell exit with the program, so that the session
	// doesn't stay open afterwards.
	exitDirective = "; exit"
)

// Spec describes how to start the program on the remote host.
type Spec struct {
	// JavaCommand is the executable of the Java VM. Defaults to `java`.
	JavaCommand string
	VMArgs      []string
	DebugPort   int
	MainClass   string
	ProgramArgs []string
}

// Validate checks that a command can be built from the Spec. It's meant to be
// called before any remote work is done.
func (spec Spec) Validate(mode Mode) error {
	if strings.TrimSpace(spec.MainClass) == "" {
		return Error{
			Kind:     CommandError,
			Resource: "mainClass",
			Err:      errors.MissingFieldError{Field: "mainClass"},
		}
	}

	if mode == Debug && spec.DebugPort <= 0 {
		return Error{
			Kind:     CommandError,
			Resource: "debugPort",
			Err:      errors.New("debug port must be positive, got %d", spec.DebugPort),
		}
	}
	return nil
}

// BuildCommand returns the shell command that starts the program from the
// staging directory.
func BuildCommand(spec Spec, mode Mode) (string, error) {
	if err := spec.Validate(mode); err != nil {
		return "", err
	}

	javaCommand := strings.TrimSpace(spec.JavaCommand)
	if javaCommand == "" {
		javaCommand = defaultJavaCommand
	}

	args := []string{javaCommand}
	if mode == Debug {
		args = append(args, fmt.Sprintf(debugFlagsFormat, spec.DebugPort))
	}
	args = appendTrimmed(args, spec.VMArgs)
	args = append(args, classpathFlag, strings.TrimSpace(spec.MainClass))
	args = appendTrimmed(args, spec.ProgramArgs)
	args = append(args, exitDirective)
	return strings.Join(args, " "), nil
}

// appendTrimmed appends the arguments with surrounding whitespace removed.
// Arguments that are only whitespace are dropped.
func appendTrimmed(args, toAppend []string) []string {
	for _, arg := range toAppend {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	return args
}
