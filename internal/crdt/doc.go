// Package crdt implements the operation-based replicated document backing
// collaborative screenplay editing. A document is a replicated sequence of
// blocks under the key "content"; updates are commutative and idempotent, so
// replicas converge regardless of delivery order.
package crdt

import (
	"encoding/json"

	"github.com/scriptwell/scriptwell-backend/internal/platform/errkind"
	"github.com/scriptwell/scriptwell-backend/internal/screenplay/blocks"
)

// ID identifies one inserted element: a Lamport counter plus the actor that
// produced it. IDs are totally ordered by (counter, actor).
type ID struct {
	Actor   string `json:"a"`
	Counter int64  `json:"c"`
}

func (x ID) less(y ID) bool {
	if x.Counter != y.Counter {
		return x.Counter < y.Counter
	}
	return x.Actor < y.Actor
}

type op struct {
	Op     string        `json:"op"`
	ID     ID            `json:"id"`
	Origin *ID           `json:"origin,omitempty"`
	Block  *blocks.Block `json:"block,omitempty"`
}

// Update is the wire form of a batch of operations from one actor.
type Update struct {
	Actor string `json:"actor,omitempty"`
	Ops   []op   `json:"ops"`
}

type element struct {
	id      ID
	origin  *ID
	block   blocks.Block
	deleted bool
}

// Doc is a single replica. Not safe for concurrent use; callers serialize
// access per script.
type Doc struct {
	elems      []element
	seen       map[ID]bool
	pendingDel map[ID]bool
	clock      int64
}

func NewDoc() *Doc {
	return &Doc{
		seen:       map[ID]bool{},
		pendingDel: map[ID]bool{},
	}
}

func (d *Doc) observe(id ID) {
	if id.Counter > d.clock {
		d.clock = id.Counter
	}
}

func (d *Doc) find(id ID) int {
	for i := range d.elems {
		if d.elems[i].id == id {
			return i
		}
	}
	return -1
}

// ApplyUpdate decodes and integrates one update. Re-applying an update the
// document has already seen is a no-op.
func (d *Doc) ApplyUpdate(data []byte) error {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return errkind.Validation("invalid crdt update: %v", err)
	}
	for _, o := range u.Ops {
		switch o.Op {
		case "insert":
			if o.Block == nil {
				return errkind.Validation("insert op without block")
			}
			d.integrate(o.ID, o.Origin, *o.Block)
		case "delete":
			d.remove(o.ID)
		default:
			return errkind.Validation("unknown crdt op %q", o.Op)
		}
	}
	return nil
}

func (d *Doc) integrate(id ID, origin *ID, b blocks.Block) {
	if d.seen[id] {
		return
	}
	d.seen[id] = true
	d.observe(id)

	ip := 0
	if origin != nil {
		oi := d.find(*origin)
		if oi < 0 {
			// Origin unknown: place at the end, keeping the ID registered so
			// a re-delivery cannot double-insert.
			ip = len(d.elems)
		} else {
			ip = oi + 1
		}
	}
	// RGA rule: elements with a greater ID claimed their slot later and stay
	// to the left of the newcomer.
	for ip < len(d.elems) && id.less(d.elems[ip].id) {
		ip++
	}

	el := element{id: id, origin: origin, block: b, deleted: d.pendingDel[id]}
	delete(d.pendingDel, id)
	d.elems = append(d.elems, element{})
	copy(d.elems[ip+1:], d.elems[ip:])
	d.elems[ip] = el
}

func (d *Doc) remove(id ID) {
	d.observe(id)
	if i := d.find(id); i >= 0 {
		d.elems[i].deleted = true
		return
	}
	d.pendingDel[id] = true
}

// Blocks returns the visible block list in document order.
func (d *Doc) Blocks() []blocks.Block {
	var out []blocks.Block
	for i := range d.elems {
		if !d.elems[i].deleted {
			out = append(out, d.elems[i].block)
		}
	}
	return out
}

// Len is the count of visible elements.
func (d *Doc) Len() int {
	n := 0
	for i := range d.elems {
		if !d.elems[i].deleted {
			n++
		}
	}
	return n
}

func (d *Doc) visibleIndex(pos int) int {
	n := -1
	for i := range d.elems {
		if d.elems[i].deleted {
			continue
		}
		n++
		if n == pos {
			return i
		}
	}
	return -1
}

// LocalInsert inserts a block at visible position pos (0 = front, Len() =
// back) on behalf of actor, applies it locally and returns the encoded
// update for the log and for broadcast.
func (d *Doc) LocalInsert(actor string, pos int, b blocks.Block) ([]byte, error) {
	if pos < 0 || pos > d.Len() {
		return nil, errkind.Validation("insert position %d out of range", pos)
	}
	var origin *ID
	if pos > 0 {
		oi := d.visibleIndex(pos - 1)
		id := d.elems[oi].id
		origin = &id
	}
	d.clock++
	id := ID{Actor: actor, Counter: d.clock}
	u := Update{Actor: actor, Ops: []op{{Op: "insert", ID: id, Origin: origin, Block: &b}}}
	data, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	d.integrate(id, origin, b)
	return data, nil
}

// LocalDelete tombstones the element at visible position pos.
func (d *Doc) LocalDelete(actor string, pos int) ([]byte, error) {
	oi := d.visibleIndex(pos)
	if oi < 0 {
		return nil, errkind.Validation("delete position %d out of range", pos)
	}
	id := d.elems[oi].id
	u := Update{Actor: actor, Ops: []op{{Op: "delete", ID: id}}}
	data, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	d.remove(id)
	return data, nil
}

// PopulateFromBlocks appends the given blocks in order, used for import and
// migration of non-collaborative documents. Returns the encoded update that
// reproduces the insertion on other replicas.
func (d *Doc) PopulateFromBlocks(actor string, list []blocks.Block) ([]byte, error) {
	ops := make([]op, 0, len(list))
	var prev *ID
	if n := d.Len(); n > 0 {
		id := d.elems[d.visibleIndex(n-1)].id
		prev = &id
	}
	for i := range list {
		d.clock++
		id := ID{Actor: actor, Counter: d.clock}
		b := list[i]
		ops = append(ops, op{Op: "insert", ID: id, Origin: prev, Block: &b})
		d.integrate(id, prev, b)
		cp := id
		prev = &cp
	}
	return json.Marshal(Update{Actor: actor, Ops: ops})
}

// EncodeState serializes the whole document, tombstones included, as a
// single update. Applying it to an empty replica rebuilds an equivalent
// document; applying it to a replica that already saw the elements is a
// no-op, so compaction commutes with outstanding updates.
func (d *Doc) EncodeState() ([]byte, error) {
	u := Update{Actor: "snapshot"}
	for i := range d.elems {
		el := d.elems[i]
		b := el.block
		u.Ops = append(u.Ops, op{Op: "insert", ID: el.id, Origin: el.origin, Block: &b})
	}
	for i := range d.elems {
		if d.elems[i].deleted {
			u.Ops = append(u.Ops, op{Op: "delete", ID: d.elems[i].id})
		}
	}
	for id := range d.pendingDel {
		u.Ops = append(u.Ops, op{Op: "delete", ID: id})
	}
	return json.Marshal(u)
}

// UpdateCountHint is the number of elements the document carries, visible or
// not. Used for snapshot metadata.
func (d *Doc) UpdateCountHint() int { return len(d.elems) }
