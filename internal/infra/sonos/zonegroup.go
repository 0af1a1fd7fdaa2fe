package sonos

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/edumarques81/spl/internal/domain/speaker"
)

type zoneGroupState struct {
	zones  []speaker.Zone
	groups []speaker.Group
	hosts  map[string]string
}

// parseZoneGroupState turns a ZoneGroupState document into zones and groups.
// Invisible members (bonded surrounds, subs) and satellites are skipped.
func parseZoneGroupState(doc string) (zoneGroupState, error) {
	state := zoneGroupState{hosts: make(map[string]string)}
	if strings.TrimSpace(doc) == "" {
		return state, errors.New("empty zone group state")
	}

	dec := xml.NewDecoder(strings.NewReader(doc))
	var current *speaker.Group
	depth, memberDepth := 0, 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return state, fmt.Errorf("failed to parse zone group state: %w", err)
		}

		switch se := tok.(type) {
		case xml.StartElement:
			depth++
			switch se.Name.Local {
			case "ZoneGroup":
				state.groups = append(state.groups, speaker.Group{
					ID:            attr(se, "ID"),
					CoordinatorID: attr(se, "Coordinator"),
				})
				current = &state.groups[len(state.groups)-1]
			case "ZoneGroupMember":
				if current == nil || memberDepth != 0 {
					continue
				}
				memberDepth = depth
				if invisible := attr(se, "Invisible"); invisible == "1" || invisible == "true" {
					continue
				}
				uuid := attr(se, "UUID")
				host, ip, err := hostFromLocation(attr(se, "Location"))
				if uuid == "" || err != nil {
					continue
				}
				state.zones = append(state.zones, speaker.Zone{
					ID:      uuid,
					Address: ip,
					Name:    attr(se, "ZoneName"),
					GroupID: current.ID,
				})
				state.hosts[uuid] = host
				current.MemberIDs = append(current.MemberIDs, uuid)
			}
		case xml.EndElement:
			if depth == memberDepth {
				memberDepth = 0
			}
			if se.Name.Local == "ZoneGroup" {
				current = nil
			}
			depth--
		}
	}

	return state, nil
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
