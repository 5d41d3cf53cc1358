package sparsefp

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
)

var (
	globalVerboseLevel int
	debugFlags         map[string]bool
	logOutput          io.Writer = os.Stderr
	logMutex           sync.Mutex
)

// SetVerboseLevel sets the global verbose level (0=quiet, 1=basic, 2=detailed, 3=trace)
func SetVerboseLevel(level int) {
	globalVerboseLevel = level
}

// GetVerboseLevel returns the current verbose level
func GetVerboseLevel() int {
	return globalVerboseLevel
}

// SetLogOutput redirects verbose and debug output; nil restores stderr
func SetLogOutput(w io.Writer) {
	logMutex.Lock()
	defer logMutex.Unlock()
	if w == nil {
		w = os.Stderr
	}
	logOutput = w
}

// logLine writes one complete line so concurrent workers never interleave
func logLine(prefix, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	logMutex.Lock()
	defer logMutex.Unlock()
	fmt.Fprint(logOutput, prefix+msg)
}

// VerboseEnter logs function entry at level 3+ and returns a func for the exit log
func VerboseEnter() func() {
	if globalVerboseLevel < 3 {
		return func() {}
	}

	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return func() {}
	}
	funcName := runtime.FuncForPC(pc).Name()
	if idx := strings.LastIndex(funcName, "."); idx != -1 {
		funcName = funcName[idx+1:]
	}

	logLine("[TRACE] ", "Entering function: %s", funcName)
	return func() {
		logLine("[TRACE] ", "Exiting function: %s", funcName)
	}
}

// VerboseLog logs a message at the specified verbose level
func VerboseLog(level int, format string, args ...interface{}) {
	if globalVerboseLevel >= level {
		logLine(fmt.Sprintf("[VERBOSE-%d] ", level), format, args...)
	}
}

// DebugLog logs a message tagged with flag when that debug flag is enabled
func DebugLog(flag string, format string, args ...interface{}) {
	if IsDebugEnabled(flag) {
		logLine(fmt.Sprintf("[%s] ", strings.ToUpper(flag)), format, args...)
	}
}

// SetDebugFlags sets the debug flags from a comma-separated string.
// Accepts plain names ("walk,sample") and name:value pairs ("walk:true,sample:off").
func SetDebugFlags(flagsStr string) {
	flags := make(map[string]bool)
	for _, flag := range strings.Split(flagsStr, ",") {
		flag = strings.TrimSpace(flag)
		if flag == "" {
			continue
		}

		name, value, hasValue := strings.Cut(flag, ":")
		enabled := true
		if hasValue {
			switch strings.ToLower(value) {
			case "false", "0", "no", "off":
				enabled = false
			}
		}
		flags[strings.ToLower(name)] = enabled
	}
	debugFlags = flags
}

// IsDebugEnabled returns true if the specified debug flag is enabled
func IsDebugEnabled(flag string) bool {
	if debugFlags == nil {
		return false
	}
	return debugFlags[strings.ToLower(flag)]
}
