package pe

import "strconv"

type ResourceType uint16

const (
	RT_CURSOR       ResourceType = 1
	RT_BITMAP       ResourceType = 2
	RT_ICON         ResourceType = 3
	RT_MENU         ResourceType = 4
	RT_DIALOG       ResourceType = 5
	RT_STRING       ResourceType = 6
	RT_FONTDIR      ResourceType = 7
	RT_FONT         ResourceType = 8
	RT_ACCELERATOR  ResourceType = 9
	RT_RCDATA       ResourceType = 10
	RT_MESSAGETABLE ResourceType = 11
	RT_GROUP_CURSOR ResourceType = 12
	RT_GROUP_ICON   ResourceType = 14
	RT_VERSION      ResourceType = 16
	RT_DLGINCLUDE   ResourceType = 17
	RT_PLUGPLAY     ResourceType = 19
	RT_VXD          ResourceType = 20
	RT_ANICURSOR    ResourceType = 21
	RT_ANIICON      ResourceType = 22
	RT_HTML         ResourceType = 23
	RT_MANIFEST     ResourceType = 24
)

var resourceTypeNames = map[ResourceType]string{
	RT_CURSOR:       "RT_CURSOR",
	RT_BITMAP:       "RT_BITMAP",
	RT_ICON:         "RT_ICON",
	RT_MENU:         "RT_MENU",
	RT_DIALOG:       "RT_DIALOG",
	RT_STRING:       "RT_STRING",
	RT_FONTDIR:      "RT_FONTDIR",
	RT_FONT:         "RT_FONT",
	RT_ACCELERATOR:  "RT_ACCELERATOR",
	RT_RCDATA:       "RT_RCDATA",
	RT_MESSAGETABLE: "RT_MESSAGETABLE",
	RT_GROUP_CURSOR: "RT_GROUP_CURSOR",
	RT_GROUP_ICON:   "RT_GROUP_ICON",
	RT_VERSION:      "RT_VERSION",
	RT_DLGINCLUDE:   "RT_DLGINCLUDE",
	RT_PLUGPLAY:     "RT_PLUGPLAY",
	RT_VXD:          "RT_VXD",
	RT_ANICURSOR:    "RT_ANICURSOR",
	RT_ANIICON:      "RT_ANIICON",
	RT_HTML:         "RT_HTML",
	RT_MANIFEST:     "RT_MANIFEST",
}

// Unknown types are named by their decimal id so that every type has
// a key in the tree.
func (self ResourceType) String() string {
	name, pres := resourceTypeNames[self]
	if pres {
		return name
	}
	return strconv.Itoa(int(self))
}
