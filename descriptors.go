package gojabridge

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Protocol Buffers descriptors are one declaration source for the bridge:
// enums become registered families, and fields map onto declared types.

// RegisterProtoEnum registers the family described by ed, named after its
// fully-qualified name, e.g. "my.pkg.Color". Proto enums that allow
// aliases are rejected if two names share a number.
func (r *Registry) RegisterProtoEnum(ed protoreflect.EnumDescriptor) (*Family, error) {
	decl := protoEnumDecl(ed)
	return r.Register(decl.Name, decl.Members...)
}

func protoEnumDecl(ed protoreflect.EnumDescriptor) FamilyDecl {
	values := ed.Values()
	entries := make([]EnumEntry, values.Len())
	for i := range entries {
		evd := values.Get(i)
		entries[i] = EnumEntry{Name: string(evd.Name()), Value: int64(evd.Number())}
	}
	return FamilyDecl{Name: string(ed.FullName()), Members: entries}
}

// LoadDescriptorSetBytes parses a serialized
// [descriptorpb.FileDescriptorSet], resolving imports against files loaded
// earlier and [protoregistry.GlobalFiles], and registers every enum of
// every file, including nested enums. Returns the registered family names.
//
// Either all enums are registered, or none are: a set holding an aliased
// enum, or a family that is already registered, changes nothing.
func (m *Module) LoadDescriptorSetBytes(data []byte) ([]string, error) {
	fds := new(descriptorpb.FileDescriptorSet)
	if err := proto.Unmarshal(data, fds); err != nil {
		return nil, fmt.Errorf("gojabridge: %w", err)
	}

	staged := new(protoregistry.Files)
	resolver := &combinedFileResolver{
		resolvers: []fileResolver{staged, m.files, protoregistry.GlobalFiles},
	}

	var (
		files []protoreflect.FileDescriptor
		enums []protoreflect.EnumDescriptor
	)
	for _, fdp := range fds.GetFile() {
		if _, err := m.files.FindFileByPath(fdp.GetName()); err == nil {
			continue
		}
		fd, err := protodesc.NewFile(fdp, resolver)
		if err != nil {
			return nil, fmt.Errorf("gojabridge: %w", err)
		}
		if err := staged.RegisterFile(fd); err != nil {
			return nil, fmt.Errorf("gojabridge: %w", err)
		}
		files = append(files, fd)
		enums = appendEnums(enums, fd.Enums(), fd.Messages())
	}

	for _, fd := range files {
		if err := m.checkFileConflicts(fd); err != nil {
			return nil, err
		}
	}

	decls := make([]FamilyDecl, len(enums))
	names := make([]string, len(enums))
	for i, ed := range enums {
		decls[i] = protoEnumDecl(ed)
		names[i] = decls[i].Name
	}
	if _, err := m.registry.RegisterAll(decls...); err != nil {
		return nil, err
	}
	for _, fd := range files {
		if err := m.files.RegisterFile(fd); err != nil {
			return nil, fmt.Errorf("gojabridge: %w", err)
		}
	}
	return names, nil
}

// FindDescriptor looks up a descriptor by its fully-qualified name, in the
// files loaded by [Module.LoadDescriptorSetBytes], then in
// [protoregistry.GlobalFiles].
func (m *Module) FindDescriptor(name protoreflect.FullName) (protoreflect.Descriptor, error) {
	if d, err := m.files.FindDescriptorByName(name); err == nil {
		return d, nil
	}
	return protoregistry.GlobalFiles.FindDescriptorByName(name)
}

// checkFileConflicts reports top level declarations of fd whose names are
// already taken by a loaded file, so that registering fd cannot fail after
// its enums were registered.
func (m *Module) checkFileConflicts(fd protoreflect.FileDescriptor) error {
	var names []protoreflect.FullName
	for i := 0; i < fd.Enums().Len(); i++ {
		ed := fd.Enums().Get(i)
		names = append(names, ed.FullName())
		for j := 0; j < ed.Values().Len(); j++ {
			names = append(names, ed.Values().Get(j).FullName())
		}
	}
	for i := 0; i < fd.Messages().Len(); i++ {
		names = append(names, fd.Messages().Get(i).FullName())
	}
	for i := 0; i < fd.Extensions().Len(); i++ {
		names = append(names, fd.Extensions().Get(i).FullName())
	}
	for i := 0; i < fd.Services().Len(); i++ {
		names = append(names, fd.Services().Get(i).FullName())
	}
	for _, name := range names {
		if _, err := m.files.FindDescriptorByName(name); err == nil {
			return fmt.Errorf("gojabridge: file %s: %s is already declared", fd.Path(), name)
		}
	}
	return nil
}

func appendEnums(dst []protoreflect.EnumDescriptor, enums protoreflect.EnumDescriptors, msgs protoreflect.MessageDescriptors) []protoreflect.EnumDescriptor {
	for i := 0; i < enums.Len(); i++ {
		dst = append(dst, enums.Get(i))
	}
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		if md.IsMapEntry() {
			continue
		}
		dst = appendEnums(dst, md.Enums(), md.Messages())
	}
	return dst
}

// FieldType declares the bridge type of a proto field. Repeated fields
// are sequences, map fields mappings, and fields with explicit optional
// presence optionals. Enum fields are [protoreflect.EnumNumber] members of
// the family named after the enum. Message fields are not supported.
func FieldType(fd protoreflect.FieldDescriptor) (*Type, error) {
	switch {
	case fd.IsMap():
		key, err := scalarFieldType(fd.MapKey())
		if err != nil {
			return nil, err
		}
		value, err := scalarFieldType(fd.MapValue())
		if err != nil {
			return nil, err
		}
		return MappingOf(key, value), nil
	case fd.IsList():
		elem, err := scalarFieldType(fd)
		if err != nil {
			return nil, err
		}
		return SequenceOf(elem), nil
	}
	t, err := scalarFieldType(fd)
	if err != nil {
		return nil, err
	}
	if fd.HasOptionalKeyword() {
		return OptionalOf(t), nil
	}
	return t, nil
}

// OneofType declares a proto oneof as a variant of its fields, in field
// order. Fields of the same Go payload type cannot be told apart, so such
// oneofs are rejected.
func OneofType(od protoreflect.OneofDescriptor) (*Type, error) {
	if od.IsSynthetic() {
		return nil, fmt.Errorf("gojabridge: oneof %s is synthetic", od.FullName())
	}
	fields := od.Fields()
	alts := make([]*Type, fields.Len())
	seen := make(map[reflect.Type]protoreflect.Name, len(alts))
	for i := range alts {
		fd := fields.Get(i)
		t, err := scalarFieldType(fd)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[t.goType]; ok {
			return nil, fmt.Errorf("gojabridge: oneof %s: fields %s and %s share the Go type %s", od.FullName(), prev, fd.Name(), t.goType)
		}
		seen[t.goType] = fd.Name()
		alts[i] = t
	}
	return VariantOf(alts...), nil
}

func scalarFieldType(fd protoreflect.FieldDescriptor) (*Type, error) {
	switch fd.Kind() {
	case protoreflect.BoolKind:
		return Bool(), nil
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		return Int[int32](), nil
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		return Int[int64](), nil
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		return Int[uint32](), nil
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return Int[uint64](), nil
	case protoreflect.FloatKind:
		return Float[float32](), nil
	case protoreflect.DoubleKind:
		return Float[float64](), nil
	case protoreflect.StringKind:
		return String(), nil
	case protoreflect.BytesKind:
		return Bytes(), nil
	case protoreflect.EnumKind:
		return Enum[protoreflect.EnumNumber](string(fd.Enum().FullName())), nil
	}
	return nil, fmt.Errorf("gojabridge: field %s: %s fields are not supported", fd.FullName(), fd.Kind())
}

type fileResolver interface {
	FindFileByPath(string) (protoreflect.FileDescriptor, error)
	FindDescriptorByName(protoreflect.FullName) (protoreflect.Descriptor, error)
}

// combinedFileResolver resolves file descriptors from each resolver in
// turn. It implements [protodesc.Resolver].
type combinedFileResolver struct {
	resolvers []fileResolver
}

func (r *combinedFileResolver) FindFileByPath(path string) (protoreflect.FileDescriptor, error) {
	for _, res := range r.resolvers {
		if fd, err := res.FindFileByPath(path); err == nil {
			return fd, nil
		}
	}
	return nil, protoregistry.NotFound
}

func (r *combinedFileResolver) FindDescriptorByName(name protoreflect.FullName) (protoreflect.Descriptor, error) {
	for _, res := range r.resolvers {
		if d, err := res.FindDescriptorByName(name); err == nil {
			return d, nil
		}
	}
	return nil, protoregistry.NotFound
}
