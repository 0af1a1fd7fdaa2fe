package sonos

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/edumarques81/spl/internal/domain/speaker"
)

// didlObject is an item or container from a DIDL-Lite result.
type didlObject struct {
	ID        string
	Title     string
	Creator   string
	Album     string
	Resources []string
}

// parseDIDL reads the items and containers of a DIDL-Lite document in order.
func parseDIDL(doc string) ([]didlObject, error) {
	if strings.TrimSpace(doc) == "" {
		return nil, nil
	}

	dec := xml.NewDecoder(strings.NewReader(doc))
	var objects []didlObject
	var current *didlObject

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return objects, fmt.Errorf("failed to parse DIDL-Lite: %w", err)
		}

		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "item", "container":
				objects = append(objects, didlObject{ID: attr(se, "id")})
				current = &objects[len(objects)-1]
			case "title", "creator", "album", "res":
				if current == nil {
					continue
				}
				var value string
				if err := dec.DecodeElement(&value, &se); err != nil {
					return objects, fmt.Errorf("failed to parse DIDL-Lite: %w", err)
				}
				value = strings.TrimSpace(value)
				switch se.Name.Local {
				case "title":
					current.Title = value
				case "creator":
					current.Creator = value
				case "album":
					current.Album = value
				case "res":
					if value != "" {
						current.Resources = append(current.Resources, value)
					}
				}
			}
		case xml.EndElement:
			if se.Name.Local == "item" || se.Name.Local == "container" {
				current = nil
			}
		}
	}

	return objects, nil
}

func (o didlObject) playlist() speaker.Playlist {
	pl := speaker.Playlist{ID: o.ID, Title: o.Title}
	if len(o.Resources) > 0 {
		pl.URI = o.Resources[0]
	}
	return pl
}

func (o didlObject) track() speaker.Track {
	return speaker.Track{
		Title:     o.Title,
		Creator:   o.Creator,
		Album:     o.Album,
		Resources: o.Resources,
	}
}

const didlHeader = `<DIDL-Lite xmlns:dc="http://purl.org/dc/elements/1.1/" ` +
	`xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/" ` +
	`xmlns:r="urn:schemas-rinconnetworks-com:metadata-1-0/" ` +
	`xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/">`

// playlistMetadata is the enqueue metadata for a saved playlist.
func playlistMetadata(pl speaker.Playlist) string {
	var b bytes.Buffer
	b.WriteString(didlHeader)
	b.WriteString(`<container id="`)
	xml.EscapeText(&b, []byte(pl.ID))
	b.WriteString(`" parentID="SQ:" restricted="true"><dc:title>`)
	xml.EscapeText(&b, []byte(pl.Title))
	b.WriteString(`</dc:title><upnp:class>object.container.playlistContainer</upnp:class>`)
	b.WriteString(`<desc id="cdudn" nameSpace="urn:schemas-rinconnetworks-com:metadata-1-0/">RINCON_AssociatedZPUDN</desc>`)
	b.WriteString(`</container></DIDL-Lite>`)
	return b.String()
}

// playlistURI returns the queue URI of a saved playlist.
func playlistURI(pl speaker.Playlist) string {
	if pl.URI != "" {
		return pl.URI
	}
	return "file:///jffs/settings/savedqueues.rsq#" + strings.TrimPrefix(pl.ID, "SQ:")
}
