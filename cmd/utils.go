package main

import (
	"os"

	kingpin "gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/binparsergen/reader"
	pe "www.velocidex.com/golang/go-pe-rsrc"
)

func openImage(fd *os.File) *pe.PEImage {
	pe.SetResourceSizeLimit(*size_limit_flag)

	stat, err := fd.Stat()
	kingpin.FatalIfError(err, "Can not stat file %s: %v", fd.Name(), err)

	reader, err := reader.NewPagedReader(fd, 4096, 100)
	kingpin.FatalIfError(err, "Can not open file %s: %v", fd.Name(), err)

	pe_file, err := pe.NewPEImage(reader, stat.Size())
	kingpin.FatalIfError(err, "Can not open file %s: %v", fd.Name(), err)

	return pe_file
}

func openResources(fd *os.File) (*pe.PEImage, *pe.ResourceManager) {
	pe_file := openImage(fd)

	resources, err := pe_file.Resources()
	kingpin.FatalIfError(err, "Can not parse resources in %s: %v", fd.Name(), err)

	if *alignment_flag > 0 {
		err = resources.SetDataAlignment(*alignment_flag)
		kingpin.FatalIfError(err, "Invalid alignment")
	}

	return pe_file, resources
}
