package main

import (
	"os"

	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var (
	messages_command      = app.Command("messages", "Extracts messages from PE file.")
	messages_command_file = messages_command.Arg("file", "").Required().
				OpenFile(os.O_RDONLY, 0600)
)

func doMessages() {
	_, resources := openResources(*messages_command_file)

	messages, err := resources.Messages()
	kingpin.FatalIfError(err, "Can not read message table")

	printJSON(messages)
}
