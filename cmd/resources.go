package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Velocidex/ordereddict"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
	pe "www.velocidex.com/golang/go-pe-rsrc"
)

var (
	tree_command      = app.Command("tree", "Shows the resource tree.")
	tree_command_file = tree_command.Arg("file", "").Required().
				OpenFile(os.O_RDONLY, 0600)
	tree_command_json = tree_command.Flag("json", "Emit JSON").Bool()

	resources_command      = app.Command("resources", "Lists resources with their location.")
	resources_command_file = resources_command.Arg("file", "").Required().
				OpenFile(os.O_RDONLY, 0600)
	resources_command_json    = resources_command.Flag("json", "Emit JSON").Bool()
	resources_command_records = resources_command.Flag("records",
		"Dump the raw directory records instead").Bool()

	extract_command      = app.Command("extract", "Writes resource payloads to a directory.")
	extract_command_file = extract_command.Arg("file", "").Required().
				OpenFile(os.O_RDONLY, 0600)
	extract_command_output = extract_command.Flag("output", "Output directory").
				Short('o').Default(".").String()
	extract_command_include = extract_command.Flag("include",
		"Resource path pattern, e.g. RT_ICON/** (prefix ! to exclude).").Strings()

	replace_command      = app.Command("replace", "Replaces one resource payload.")
	replace_command_file = replace_command.Arg("file", "").Required().
				OpenFile(os.O_RDONLY, 0600)
	replace_command_path = replace_command.Arg("path",
		"Resource path, e.g. RT_MANIFEST/1/1033").Required().String()
	replace_command_payload = replace_command.Arg("payload",
		"File holding the new payload").Required().ExistingFile()
	replace_command_output = replace_command.Flag("output", "Where to write the new image").
				Short('o').Required().String()
	replace_command_strip = replace_command.Flag("strip-signature",
		"Drop the (now invalid) authenticode signature").Bool()
)

func doTree() {
	_, resources := openResources(*tree_command_file)
	if *tree_command_json {
		printDict(resources.Tree().ToDict())
		return
	}
	resources.ShowResourceTree(os.Stdout)
}

func doResources() {
	_, resources := openResources(*resources_command_file)

	if *resources_command_records {
		fmt.Print(resources.DebugRecords())
		return
	}

	if !*resources_command_json {
		resources.ShowResourceInfo(os.Stdout)
		return
	}

	result := []*ordereddict.Dict{}
	for resource := range resources.Resources() {
		result = append(result, ordereddict.NewDict().
			Set("Path", resource.PathString()).
			Set("Offset", int64(resource.Offset())).
			Set("Size", resource.Size()).
			Set("CodePage", int64(resource.CodePage())))
	}
	printJSON(result)
}

func doExtract() {
	_, resources := openResources(*extract_command_file)

	selected, err := resources.SelectResources(
		pe.ParseResourceRules(*extract_command_include))
	kingpin.FatalIfError(err, "Invalid include pattern")

	err = os.MkdirAll(*extract_command_output, 0700)
	kingpin.FatalIfError(err, "Can not create %v", *extract_command_output)

	for _, resource := range selected {
		data, err := resource.Data()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skipping %v: %v\n", resource.PathString(), err)
			continue
		}

		name := strings.Join(resource.Path(), "_") + ".bin"
		path := filepath.Join(*extract_command_output, filepath.Base(name))
		err = os.WriteFile(path, data, 0600)
		kingpin.FatalIfError(err, "Can not write %v", path)

		fmt.Printf("%v -> %v (%d bytes)\n", resource.PathString(), path, len(data))
	}
}

func doReplace() {
	pe_file, resources := openResources(*replace_command_file)

	resource, err := resources.Lookup(strings.Split(*replace_command_path, "/")...)
	kingpin.FatalIfError(err, "Can not find resource")

	payload, err := os.ReadFile(*replace_command_payload)
	kingpin.FatalIfError(err, "Can not read %v", *replace_command_payload)

	err = resource.SetData(payload)
	kingpin.FatalIfError(err, "Can not replace %v", resource.PathString())

	if *replace_command_strip {
		err = pe_file.StripSignature()
		if err != nil && !errors.Is(err, pe.ErrNoSignature) {
			kingpin.FatalIfError(err, "Can not strip signature")
		}
	} else if pe_file.Signed() {
		fmt.Fprintf(os.Stderr,
			"Warning: the authenticode signature is no longer valid (use --strip-signature)\n")
	}

	// Serialize fully before opening the output, which may be the input.
	data, err := pe_file.Bytes()
	kingpin.FatalIfError(err, "Can not rebuild image")

	err = os.WriteFile(*replace_command_output, data, 0600)
	kingpin.FatalIfError(err, "Can not write %v", *replace_command_output)
}
