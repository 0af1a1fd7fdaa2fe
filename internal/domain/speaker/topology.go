package speaker

// Zone is a discovered speaker. It is a snapshot taken at discovery time;
// group membership is a lookup through the owning Topology, not a pointer.
type Zone struct {
	ID      string
	Address string
	Name    string
	GroupID string
}

// Group is a set of zones playing in sync, controlled through its coordinator.
type Group struct {
	ID            string
	CoordinatorID string
	MemberIDs     []string
}

// Topology indexes the zones and groups returned by one discovery call.
type Topology struct {
	zones  []Zone
	byID   map[string]int
	groups map[string]Group
}

// NewTopology builds a topology index. Zones keep their discovery order.
// A zone whose group is unknown becomes the coordinator of a singleton group,
// and group members that are not among the zones are dropped.
func NewTopology(zones []Zone, groups []Group) *Topology {
	t := &Topology{
		zones:  make([]Zone, 0, len(zones)),
		byID:   make(map[string]int, len(zones)),
		groups: make(map[string]Group, len(groups)),
	}

	for _, z := range zones {
		if _, dup := t.byID[z.ID]; dup {
			continue
		}
		t.byID[z.ID] = len(t.zones)
		t.zones = append(t.zones, z)
	}

	for _, g := range groups {
		members := make([]string, 0, len(g.MemberIDs))
		for _, id := range g.MemberIDs {
			if _, ok := t.byID[id]; ok {
				members = append(members, id)
			}
		}
		if len(members) == 0 {
			continue
		}
		if _, ok := t.byID[g.CoordinatorID]; !ok {
			g.CoordinatorID = members[0]
		}
		g.MemberIDs = members
		t.groups[g.ID] = g
	}

	for i, z := range t.zones {
		if g, ok := t.groups[z.GroupID]; ok && contains(g.MemberIDs, z.ID) {
			continue
		}
		gid := z.GroupID
		if gid == "" || t.groups[gid].ID != "" {
			gid = z.ID + ":solo"
		}
		t.zones[i].GroupID = gid
		t.groups[gid] = Group{ID: gid, CoordinatorID: z.ID, MemberIDs: []string{z.ID}}
	}

	return t
}

// Len returns the number of zones.
func (t *Topology) Len() int {
	if t == nil {
		return 0
	}
	return len(t.zones)
}

// Zones returns the zones in discovery order.
func (t *Topology) Zones() []Zone {
	if t == nil {
		return nil
	}
	out := make([]Zone, len(t.zones))
	copy(out, t.zones)
	return out
}

// Zone looks a zone up by ID.
func (t *Topology) Zone(id string) (Zone, bool) {
	if t == nil {
		return Zone{}, false
	}
	i, ok := t.byID[id]
	if !ok {
		return Zone{}, false
	}
	return t.zones[i], true
}

// Group returns the group z belongs to.
func (t *Topology) Group(z Zone) Group {
	if t == nil {
		return Group{ID: z.ID, CoordinatorID: z.ID, MemberIDs: []string{z.ID}}
	}
	if g, ok := t.groups[z.GroupID]; ok {
		return g
	}
	return Group{ID: z.ID, CoordinatorID: z.ID, MemberIDs: []string{z.ID}}
}

// Members returns the zones in z's group, z included.
func (t *Topology) Members(z Zone) []Zone {
	g := t.Group(z)
	members := make([]Zone, 0, len(g.MemberIDs))
	for _, id := range g.MemberIDs {
		if m, ok := t.Zone(id); ok {
			members = append(members, m)
		}
	}
	if len(members) == 0 {
		members = append(members, z)
	}
	return members
}

// Coordinator returns the coordinator of z's group.
func (t *Topology) Coordinator(z Zone) Zone {
	g := t.Group(z)
	if c, ok := t.Zone(g.CoordinatorID); ok {
		return c
	}
	return z
}

// IsCoordinator reports whether z coordinates its own group.
func (t *Topology) IsCoordinator(z Zone) bool {
	return t.Group(z).CoordinatorID == z.ID
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
