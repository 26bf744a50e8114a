package pe

import (
	"fmt"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

var (
	PE_DEBUG *bool
)

// DebugPrint is enabled by setting PE_DEBUG in the environment. The
// rebuild engine uses it to report moved resources.
func DebugPrint(fmt_str string, v ...interface{}) {
	if PE_DEBUG == nil {
		// os.Environ() seems very expensive in Go so we cache
		// it.
		for _, x := range os.Environ() {
			if strings.HasPrefix(x, "PE_DEBUG=") {
				value := true
				PE_DEBUG = &value
				break
			}
		}
	}

	if PE_DEBUG == nil {
		value := false
		PE_DEBUG = &value
	}

	if *PE_DEBUG {
		fmt.Printf(fmt_str, v...)
	}
}

// DebugRecords dumps the bookkeeping list of the resource manager.
func (self *ResourceManager) DebugRecords() string {
	return spew.Sdump(self.Records())
}
