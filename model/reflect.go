// Package model - Reflection-basierte Parameter-Erkennung
//
// Dieses Modul enthält die Reflection-Logik, die Modell-Strukturen
// rekursiv nach Tensoren durchsucht und ihnen stabile Pfadnamen gibt.
//
// Hauptkomponenten:
// - Params: Liefert alle Parameter einer Struktur in Deklarationsreihenfolge
// - walkFields: Durchläuft Strukturfelder rekursiv
// - Tag: Tag-Struktur für Tensor-Namen (`weight:"name[,buffer][,alt:other]"`)
// - parseTag: Parst Tags aus Struct-Tags

package model

import (
	"log/slog"
	"reflect"
	"strconv"
	"strings"

	"github.com/louis-chevallier/stylegan/logutil"
	"github.com/louis-chevallier/stylegan/ml"
)

// TagKey ist der Struct-Tag-Schlüssel für Parameternamen
const TagKey = "weight"

// Tag repräsentiert einen geparsten Parameter-Tag
type Tag struct {
	name string
	// buffer markiert nicht gelernte Tensoren (z.B. Blur-Kernel)
	buffer       bool
	alternatives []string
}

// parseTag parst einen Tag-String in eine Tag-Struktur
func parseTag(s string) (tag Tag) {
	parts := strings.Split(s, ",")
	tag.name = parts[0]

	for _, part := range parts[1:] {
		switch value, ok := strings.CutPrefix(part, "alt:"); {
		case ok && tag.name == "":
			// Alternative zum Primärnamen erheben wenn kein Primärname
			tag.name = value
			slog.Warn("weight tag has alt: but no primary name", "tag", s)
		case ok:
			tag.alternatives = append(tag.alternatives, value)
		case part == "buffer":
			tag.buffer = true
		}
	}

	return
}

// Namer wird von Slice-Elementen implementiert, die einen eigenen
// Pfadnamen statt ihres Index tragen
type Namer interface {
	ParamName() string
}

// Param ist ein einzelner benannter Tensor einer Modell-Struktur
type Param struct {
	// Names enthält den Primärnamen gefolgt von Alternativen
	Names  []string
	Tensor ml.Tensor
	Buffer bool
}

// Name gibt den Primärnamen zurück
func (p Param) Name() string {
	return p.Names[0]
}

var tensorType = reflect.TypeFor[ml.Tensor]()

// Params liefert alle Tensoren in v (Pointer auf Struct) mit vollständigen Namen.
// prefix wird jedem Namen vorangestellt (z.B. "g_synthesis.").
func Params(v any, prefix string) []Param {
	var params []Param
	walkFields(reflect.ValueOf(v), nil, func(tags []Tag, t ml.Tensor) {
		names := buildTensorNames(tags)
		if len(names) == 0 {
			return
		}

		for i := range names {
			names[i] = prefix + names[i]
		}

		p := Param{Names: names, Tensor: t, Buffer: tags[len(tags)-1].buffer}
		logutil.Trace("found param", "name", p.Name(), "tensor", t)
		params = append(params, p)
	})

	return params
}

// walkFields durchläuft v rekursiv und ruft fn für jeden gesetzten Tensor auf
func walkFields(v reflect.Value, tags []Tag, fn func([]Tag, ml.Tensor)) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return
		}

		if v.Type().Implements(tensorType) {
			if t, ok := v.Interface().(ml.Tensor); ok {
				fn(tags, t)
				return
			}
		}

		walkFields(v.Elem(), tags, fn)
	case reflect.Struct:
		t := v.Type()
		for i := range t.NumField() {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}

			// Tensoren brauchen einen eigenen Namen
			tag := field.Tag.Get(TagKey)
			if tag == "" && field.Type == tensorType {
				continue
			}

			// Kopie erstellen, Felder ohne Tag fügen kein Segment hinzu
			tagsCopy := tags
			if tag != "" {
				tagsCopy = append(tagsCopy[:len(tagsCopy):len(tagsCopy)], parseTag(tag))
			}

			walkFields(v.Field(i), tagsCopy, fn)
		}
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			vv := v.Index(i)

			name := strconv.Itoa(i)
			if n, ok := namerOf(vv); ok {
				name = n.ParamName()
			}

			walkFields(vv, append(tags[:len(tags):len(tags)], Tag{name: name}), fn)
		}
	}
}

// namerOf prüft ob ein Slice-Element einen eigenen Namen trägt
func namerOf(v reflect.Value) (Namer, bool) {
	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return nil, false
	}

	if !v.CanInterface() {
		return nil, false
	}

	n, ok := v.Interface().(Namer)
	return n, ok
}

// buildTensorNames baut die vollständigen Tensor-Namen aus Tags.
// Alternativen werden über alle Ebenen kombiniert, der Primärname steht vorn.
func buildTensorNames(tags []Tag) []string {
	if len(tags) == 0 {
		return nil
	}

	var names []string
	if tags[0].name != "" {
		names = append([]string{tags[0].name}, tags[0].alternatives...)
	}

	childNames := buildTensorNames(tags[1:])
	switch {
	case len(names) == 0:
		// Aktueller Tag hat keinen Namen, nur Kind-Namen verwenden
		return childNames
	case len(tags) == 1:
		return names
	case len(childNames) == 0:
		return nil
	}

	// Jeden Namen mit jedem Kind zusammenführen
	var fullNames []string
	for _, name := range names {
		for _, child := range childNames {
			fullNames = append(fullNames, name+"."+child)
		}
	}

	return fullNames
}
