package document

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ivlev/kinema/internal/clip"
	"github.com/ivlev/kinema/internal/effects"
	"github.com/ivlev/kinema/internal/engine"
	"github.com/ivlev/kinema/internal/source"
	"github.com/ivlev/kinema/internal/timemap"
)

const projectID = 0

// Encode flattens p into records: the project first, then the root clip
// tree depth first, each resource just before the first clip using it.
func Encode(p *engine.Project) (*Document, error) {
	e := &encoder{resources: make(map[source.Resource]int), next: projectID + 1}
	e.emit(Record{Type: TypeProject, ID: projectID, Attrs: map[string]any{
		"width":    p.Width,
		"height":   p.Height,
		"fps":      p.FPS,
		"filename": p.Filename,
		"target":   p.Target,
		"workers":  p.Workers,
	}})
	if p.Root == nil {
		return nil, errors.New("project without root clip")
	}
	if err := e.clip(p.Root, projectID); err != nil {
		return nil, err
	}
	tracer().Debugf("document: encoded %d records", len(e.doc.Records))
	return &e.doc, nil
}

type encoder struct {
	doc       Document
	resources map[source.Resource]int
	next      int
}

func (e *encoder) id() int {
	id := e.next
	e.next++
	return id
}

func (e *encoder) emit(r Record) {
	if e.doc.Version == "" {
		e.doc.Version = Version
	}
	e.doc.Records = append(e.doc.Records, r)
}

func parentOf(id int) *int { return &id }

func (e *encoder) resource(r source.Resource) (int, error) {
	if id, ok := e.resources[r]; ok {
		return id, nil
	}
	sub, attrs, err := encodeResource(r)
	if err != nil {
		return 0, err
	}
	id := e.id()
	e.resources[r] = id
	e.emit(Record{Type: TypeResource, Subtype: sub, ID: id, Attrs: attrs})
	return id, nil
}

func (e *encoder) clip(c *clip.Clip, parent int) error {
	rid, err := e.resource(c.Resource)
	if err != nil {
		return err
	}
	id := e.id()
	attrs := map[string]any{"resource": rid}
	encodeVars(attrs, c.Variables())
	if tm := c.MappedTimeMap(); tm != nil && edited(tm) {
		attrs["time_map"] = map[string]any{
			"duration":   tm.ResourceDuration(),
			"crop_start": tm.CropStart(),
			"crop_end":   tm.CropEnd(),
			"speed":      tm.Speed(),
		}
	}
	e.emit(Record{Type: TypeClip, ID: id, Parent: parentOf(parent), Attrs: attrs})
	for _, it := range c.Items() {
		if it.Child != nil {
			err = e.clip(it.Child, id)
		} else {
			err = e.effect(it.Effect, id)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func edited(tm *timemap.TimeMap) bool {
	return tm.CropStart() != 0 || tm.CropEnd() != 0 || tm.Speed() != 1
}

func (e *encoder) effect(fx effects.Effect, parent int) error {
	id := e.id()
	attrs := map[string]any{}
	encodeVars(attrs, fx.Variables())
	if b, ok := fx.(*effects.Border); ok {
		corners := map[string]any{}
		for name, c := range b.Corners() {
			m := map[string]any{}
			encodeVars(m, c.Variables())
			if len(m) > 0 {
				corners[name] = m
			}
		}
		if len(corners) > 0 {
			attrs["corners"] = corners
		}
	}
	e.emit(Record{Type: TypeEffect, Subtype: fx.Kind(), ID: id, Parent: parentOf(parent), Attrs: nonEmpty(attrs)})
	switch x := fx.(type) {
	case *effects.Seq:
		for _, inner := range x.Effects {
			if err := e.effect(inner, id); err != nil {
				return err
			}
		}
	case *effects.Draw:
		for _, in := range x.Instructions {
			m := map[string]any{}
			encodeVars(m, in.Variables())
			e.emit(Record{Type: TypeEffect, Subtype: instructionPrefix + in.Kind(), ID: e.id(), Parent: parentOf(id), Attrs: nonEmpty(m)})
		}
	}
	return nil
}

func nonEmpty(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return m
}

// Decode rebuilds a project. Records are built first, then parents and
// resource references are resolved in document order, so items keep the
// order they were written in.
func Decode(doc *Document) (*engine.Project, error) {
	if doc.Version != "" && doc.Version != Version {
		return nil, fmt.Errorf("unsupported document version %q", doc.Version)
	}
	objects := make(map[int]any, len(doc.Records))
	var project *engine.Project
	for i := range doc.Records {
		r := &doc.Records[i]
		if _, dup := objects[r.ID]; dup {
			return nil, fmt.Errorf("duplicate record id %d", r.ID)
		}
		obj, err := build(r)
		if err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", r.ID, r.Type, err)
		}
		if p, ok := obj.(*engine.Project); ok {
			if project != nil {
				return nil, fmt.Errorf("record %d: second project record", r.ID)
			}
			project = p
		}
		objects[r.ID] = obj
	}
	if project == nil {
		return nil, errors.New("document has no project record")
	}

	var root *clip.Clip
	for i := range doc.Records {
		r := &doc.Records[i]
		if r.Type == TypeProject || r.Type == TypeResource {
			continue
		}
		if r.Parent == nil {
			return nil, fmt.Errorf("%w: %s %d has no parent", ErrUnresolved, r.Type, r.ID)
		}
		parent, ok := objects[*r.Parent]
		if !ok {
			return nil, fmt.Errorf("%w: parent %d of %s %d", ErrUnresolved, *r.Parent, r.Type, r.ID)
		}
		if err := link(r, objects[r.ID], parent, objects); err != nil {
			return nil, fmt.Errorf("record %d (%s): %w", r.ID, r.Type, err)
		}
		if c, ok := objects[r.ID].(*clip.Clip); ok && parent == project {
			if root != nil {
				return nil, fmt.Errorf("record %d: second root clip", r.ID)
			}
			root = c
		}
	}
	if root != nil {
		project.Root = root
	} else {
		project.SetSize(project.Width, project.Height)
	}
	tracer().Debugf("document: decoded %d records", len(doc.Records))
	return project, nil
}

// build instantiates one record with its variables applied.
func build(r *Record) (any, error) {
	switch r.Type {
	case TypeProject:
		a := attrReader{attrs: r.Attrs}
		p := engine.NewProject()
		p.Width = a.int("width", p.Width)
		p.Height = a.int("height", p.Height)
		p.FPS = a.float("fps", p.FPS)
		if name := a.string("filename"); name != "" {
			p.Filename = name
		}
		p.Target = a.float("target", 0)
		p.Workers = a.int("workers", 0)
		return p, a.err
	case TypeResource:
		return decodeResource(r.Subtype, r.Attrs)
	case TypeClip:
		c := clip.New(nil)
		if err := decodeVars(r.Attrs, c.Variables()); err != nil {
			return nil, err
		}
		return c, nil
	case TypeEffect:
		if kind, ok := strings.CutPrefix(r.Subtype, instructionPrefix); ok {
			in, err := effects.NewInstruction(kind)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnknownType, err)
			}
			return in, decodeVars(r.Attrs, in.Variables())
		}
		fx, err := effects.New(r.Subtype)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownType, err)
		}
		if err := decodeVars(r.Attrs, fx.Variables()); err != nil {
			return nil, err
		}
		if b, ok := fx.(*effects.Border); ok {
			if err := decodeCorners(b, r.Attrs["corners"]); err != nil {
				return nil, err
			}
		}
		return fx, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownType, r.Type)
}

func decodeCorners(b *effects.Border, raw any) error {
	if raw == nil {
		return nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("corners: expected a mapping, got %T", raw)
	}
	corners := b.Corners()
	for name, attrs := range m {
		c, ok := corners[name]
		if !ok {
			return fmt.Errorf("corners: unknown corner %q", name)
		}
		cm, ok := attrs.(map[string]any)
		if !ok {
			return fmt.Errorf("corner %s: expected a mapping, got %T", name, attrs)
		}
		if err := decodeVars(cm, c.Variables()); err != nil {
			return fmt.Errorf("corner %s: %w", name, err)
		}
	}
	return nil
}

// link attaches obj to parent and resolves the clip's resource.
func link(r *Record, obj, parent any, objects map[int]any) error {
	switch x := obj.(type) {
	case *clip.Clip:
		if err := attachResource(x, r.Attrs, objects); err != nil {
			return err
		}
		switch p := parent.(type) {
		case *engine.Project:
		case *clip.Clip:
			p.AddChild(x)
		default:
			return fmt.Errorf("clip cannot be a child of %T", parent)
		}
	case effects.Instruction:
		d, ok := parent.(*effects.Draw)
		if !ok {
			return fmt.Errorf("draw instruction needs a draw parent, got %T", parent)
		}
		d.Add(x)
	case effects.Effect:
		switch p := parent.(type) {
		case *clip.Clip:
			p.AddEffect(x)
		case *effects.Seq:
			p.Add(x)
		default:
			return fmt.Errorf("effect cannot be a child of %T", parent)
		}
	default:
		return fmt.Errorf("%T cannot have a parent", obj)
	}
	return nil
}

func attachResource(c *clip.Clip, attrs map[string]any, objects map[int]any) error {
	a := attrReader{attrs: attrs}
	rid := a.int("resource", -1)
	if a.err != nil {
		return a.err
	}
	res, ok := objects[rid].(source.Resource)
	if !ok {
		return fmt.Errorf("%w: resource %d", ErrUnresolved, rid)
	}
	c.Resource = res

	raw, ok := attrs["time_map"]
	if !ok {
		return nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("time_map: expected a mapping, got %T", raw)
	}
	t := attrReader{attrs: m}
	tm, err := timemap.New(t.float("duration", 0))
	if err != nil {
		return err
	}
	if err := tm.SetCropStart(t.float("crop_start", 0)); err != nil {
		return err
	}
	if err := tm.SetCropEnd(t.float("crop_end", 0)); err != nil {
		return err
	}
	if err := tm.SetSpeed(t.float("speed", 1)); err != nil {
		return err
	}
	if t.err != nil {
		return t.err
	}
	c.SetTimeMap(tm)
	return nil
}
