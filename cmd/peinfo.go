package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Velocidex/ordereddict"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
	pe "www.velocidex.com/golang/go-pe-rsrc"
)

var (
	app               = kingpin.New("pe-rsrc", "PE resource viewer and editor.")
	info_command      = app.Command("info", "Displays info about a pe file.")
	info_command_file = info_command.Arg("file", "").Required().
				OpenFile(os.O_RDONLY, 0600)

	alignment_flag = app.Flag("alignment",
		"Resource data alignment used when resources move (default: inferred).").
		Int64()

	size_limit_flag = app.Flag("size_limit",
		"Largest resource payload or section to load, in bytes.").
		Default("104857600").Int64()
)

func doInfo() {
	pe_file := openImage(*info_command_file)

	dict := pe_file.ToDict()

	resources, err := pe_file.Resources()
	if err == nil {
		dict.Set("ResourceAlignment", resources.DataAlignment())

		version_info, err := resources.VersionInformation()
		if err == nil {
			dict.Set("VersionInformation", version_info)
		}
	} else {
		dict.Set("ResourceError", err.Error())
	}

	dict.Set("Signed", pe_file.Signed())

	printJSON(dict)
}

func printJSON(value interface{}) {
	serialized, _ := json.MarshalIndent(value, "", "  ")
	fmt.Println(string(serialized))
}

func printDict(dict *ordereddict.Dict) {
	printJSON(dict)
}

func main() {
	app.HelpFlag.Short('h')
	app.UsageTemplate(kingpin.CompactUsageTemplate)
	command := kingpin.MustParse(app.Parse(os.Args[1:]))
	switch command {

	case info_command.FullCommand():
		doInfo()

	case tree_command.FullCommand():
		doTree()

	case resources_command.FullCommand():
		doResources()

	case extract_command.FullCommand():
		doExtract()

	case replace_command.FullCommand():
		doReplace()

	case messages_command.FullCommand():
		doMessages()

	case signature_command.FullCommand():
		doSignature()
	}
}
