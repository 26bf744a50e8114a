package main

import (
	"os"

	kingpin "gopkg.in/alecthomas/kingpin.v2"
	pe "www.velocidex.com/golang/go-pe-rsrc"
)

var (
	signature_command      = app.Command("signature", "Displays the authenticode signer of the file.")
	signature_command_file = signature_command.Arg("file", "").Required().
				OpenFile(os.O_RDONLY, 0600)
)

func doSignature() {
	pe_file := openImage(*signature_command_file)

	authenticode_info, err := pe_file.Signature()
	kingpin.FatalIfError(err, "Can not parse authenticode_info")

	printDict(pe.SignatureToDict(authenticode_info))
}
