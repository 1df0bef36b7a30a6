package bus

import (
	"context"
	"reflect"
)

/*
A parent object serializes its child list as object versions. On the
slave side the incoming list is reconciled against the current one:

  - a zero id stands for a nil slot and is kept as nil
  - a known id keeps the existing child, synced forward (masters sync
    to head, slaves to the serialized version)
  - an unknown id creates a child through the factory and maps it at
    the serialized version
  - children absent from the incoming list are unmapped if they are
    attached slaves, then released
*/

// WriteChildren serializes the child list. Nil slots write a zero
// object version.
func WriteChildren[T Object](os *OutStream, children []T) {
	versions := make([]ObjectVersion, 0, len(children))
	for _, child := range children {
		var ov ObjectVersion
		if !isNilObject(child) {
			ov = child.Core().ObjectVersion()
		}
		versions = append(versions, ov)
	}
	WriteObjectVersions(os, versions)
}

// SyncChildren reads a serialized child list and reconciles the local
// one, returning the new list in serialized order.
func SyncChildren[T Object](
	ctx context.Context,
	node *LocalNode,
	owner Id,
	is *InStream,
	children []T,
	create func() (T, error),
	release func(T),
) ([]T, error) {
	versions, err := ReadObjectVersions(is)
	if err != nil {
		return children, err
	}

	existing := map[Id]T{}
	for _, child := range children {
		if !isNilObject(child) {
			existing[child.Core().ID()] = child
		}
	}

	next := make([]T, 0, len(versions))
	for _, ov := range versions {
		if ov.ID.IsZero() {
			var zero T
			next = append(next, zero)
			continue
		}

		if child, ok := existing[ov.ID]; ok {
			delete(existing, ov.ID)
			version := ov.Version
			if child.Core().IsMaster() {
				version = VersionHead
			}
			if err := node.Sync(ctx, child, version); err != nil {
				return children, err
			}
			next = append(next, child)
			continue
		}

		child, err := create()
		if err != nil {
			return children, err
		}
		if err := node.MapObject(child, ov, owner); err != nil {
			return children, err
		}
		next = append(next, child)
	}

	for _, child := range existing {
		core := child.Core()
		if core.IsAttached() && !core.IsMaster() {
			node.UnmapObject(child)
		}
		if release != nil {
			release(child)
		}
	}

	return next, nil
}

func isNilObject(object Object) bool {
	if object == nil {
		return true
	}
	v := reflect.ValueOf(object)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
