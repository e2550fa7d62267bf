package debug

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"sync"
)

//
// Debug output is controled by OS161DEBUG environment variable, which
// can be a list of labels (e.g., "WAIT;EXIT").
//

const OS161DEBUG = "OS161DEBUG"

var (
	mu     sync.Mutex
	labels map[Tselector]bool
)

func init() {
	// XXX may want to set log.Ldate when not debugging
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	SetDebug(os.Getenv(OS161DEBUG))
}

// SetDebug replaces the enabled selectors, e.g. from boot parameters.
func SetDebug(s string) {
	m := make(map[Tselector]bool)
	if s != "" {
		for _, l := range strings.Split(s, ";") {
			m[Tselector(l)] = true
		}
	}
	mu.Lock()
	defer mu.Unlock()
	labels = m
}

func WillBePrinted(label Tselector) bool {
	if label == ALWAYS {
		return true
	}
	mu.Lock()
	defer mu.Unlock()
	return labels[label]
}

func DPrintf(label Tselector, format string, v ...interface{}) {
	if WillBePrinted(label) {
		log.Printf("%v %v", label, fmt.Sprintf(format, v...))
	}
}

func DFatalf(format string, v ...interface{}) {
	// Get info for the caller.
	pc, file, line, ok := runtime.Caller(1)
	fnDetails := runtime.FuncForPC(pc)
	if ok && fnDetails != nil {
		log.Fatalf("FATAL %v %v:%v %v", fnDetails.Name(), file, line, fmt.Sprintf(format, v...))
	} else {
		log.Fatalf("FATAL (missing details) %v", fmt.Sprintf(format, v...))
	}
}
