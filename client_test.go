package wlclient

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// Unit tests that don't require a compositor

func TestFixed(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{1.0, 1.0},
		{0.5, 0.5},
		{123.456, 123.456},
		{-1.5, -1.5},
		{0.0, 0.0},
		{256.0, 256.0},
	}

	for _, test := range tests {
		fixed := NewFixed(test.input)
		result := fixed.Float64()

		// Allow small precision differences
		diff := result - test.expected
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.01 {
			t.Errorf("Fixed conversion: input=%f, expected=%f, got=%f",
				test.input, test.expected, result)
		}
	}
}

func TestEventDispatcher(t *testing.T) {
	dispatcher := NewEventDispatcher()

	called := false
	dispatcher.RegisterHandler(123, 1, func(event *Event) {
		called = true
		if event.ProxyID != 123 || event.Opcode != 1 {
			t.Errorf("Expected ProxyID=123, Opcode=1, got ProxyID=%d, Opcode=%d", event.ProxyID, event.Opcode)
		}
	})

	n := dispatcher.Dispatch(&Event{ProxyID: 123, Opcode: 1})
	if !called {
		t.Error("Handler should have been called")
	}
	if n != 1 {
		t.Errorf("Dispatch() = %d, want 1", n)
	}

	if n := dispatcher.Dispatch(&Event{ProxyID: 123, Opcode: 2}); n != 0 {
		t.Errorf("Dispatch() for unregistered opcode = %d, want 0", n)
	}
}

func TestEventDispatcherHandlersReadFromStart(t *testing.T) {
	dispatcher := NewEventDispatcher()

	var got []uint32
	read := func(event *Event) {
		got = append(got, event.Uint32())
	}
	dispatcher.RegisterHandler(7, 0, read)
	dispatcher.RegisterHandler(7, 0, read)

	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, 42)
	dispatcher.Dispatch(&Event{ProxyID: 7, Opcode: 0, data: data})

	if len(got) != 2 || got[0] != 42 || got[1] != 42 {
		t.Errorf("handlers read %v, want [42 42]", got)
	}

	dispatcher.Unregister(7)
	if n := dispatcher.Dispatch(&Event{ProxyID: 7, Opcode: 0, data: data}); n != 0 {
		t.Errorf("Dispatch() after Unregister = %d, want 0", n)
	}
}

func TestMessageMarshalingBasic(t *testing.T) {
	// Create a display to test marshaling (without connecting)
	d := &Display{
		nextID: 2,
	}

	buf := &bytes.Buffer{}

	tests := []struct {
		name string
		arg  interface{}
		want []byte
	}{
		{
			name: "uint32",
			arg:  uint32(0x12345678),
			want: []byte{0x78, 0x56, 0x34, 0x12}, // little endian
		},
		{
			name: "int32",
			arg:  int32(-1),
			want: []byte{0xFF, 0xFF, 0xFF, 0xFF},
		},
		{
			name: "Fixed",
			arg:  NewFixed(1.0),
			want: []byte{0x00, 0x01, 0x00, 0x00}, // 256 in little endian
		},
		{
			name: "string",
			arg:  "test",
			want: []byte{0x05, 0x00, 0x00, 0x00, 't', 'e', 's', 't', 0x00, 0x00, 0x00, 0x00}, // length + string + null + padding
		},
		{
			name: "array",
			arg:  []byte{1, 2, 3},
			want: []byte{0x03, 0x00, 0x00, 0x00, 1, 2, 3, 0x00},
		},
		{
			name: "object",
			arg:  &Surface{BaseProxy: BaseProxy{id: 9}},
			want: []byte{0x09, 0x00, 0x00, 0x00},
		},
		{
			name: "nil object",
			arg:  nil,
			want: []byte{0x00, 0x00, 0x00, 0x00},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			buf.Reset()
			err := d.marshalArg(buf, test.arg)
			if err != nil {
				t.Fatalf("marshalArg failed: %v", err)
			}

			got := buf.Bytes()
			if !bytes.Equal(got, test.want) {
				t.Errorf("marshalArg(%v) = %v, want %v", test.arg, got, test.want)
			}
		})
	}

	if err := d.marshalArg(buf, 3.5); err == nil {
		t.Error("marshalArg(float64) should fail")
	}
}

func TestSendRequestBuffersUntilFlush(t *testing.T) {
	d := &Display{nextID: 2}

	if err := d.SendRequest(5, 2, uint32(7), FD(11)); err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}

	got := d.out.Bytes()
	want := []byte{
		0x05, 0x00, 0x00, 0x00, // object
		0x02, 0x00, 0x0C, 0x00, // opcode 2, size 12
		0x07, 0x00, 0x00, 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Errorf("buffered request = %v, want %v", got, want)
	}
	if len(d.outFDs) != 1 || d.outFDs[0] != 11 {
		t.Errorf("buffered fds = %v, want [11]", d.outFDs)
	}
}

func TestMessageHeaderParsing(t *testing.T) {
	tests := []struct {
		name     string
		header   []byte
		wantID   uint32
		wantSize uint32
		wantOp   uint16
	}{
		{
			name:     "basic header",
			header:   []byte{0x05, 0x00, 0x00, 0x00, 0x02, 0x00, 0x0C, 0x00}, // ID=5, opcode=2, size=12 (size is upper 16 bits)
			wantID:   5,
			wantSize: 12,
			wantOp:   2,
		},
		{
			name:     "large values",
			header:   []byte{0xFF, 0xFF, 0x00, 0x00, 0xFF, 0x00, 0x00, 0x10}, // ID=65535, opcode=255, size=4096
			wantID:   65535,
			wantSize: 4096,
			wantOp:   255,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			objectID := binary.LittleEndian.Uint32(test.header[0:4])
			sizeOpcode := binary.LittleEndian.Uint32(test.header[4:8])
			size := sizeOpcode >> 16
			opcode := sizeOpcode & 0xffff

			if objectID != test.wantID {
				t.Errorf("object ID = %d, want %d", objectID, test.wantID)
			}
			if size != test.wantSize {
				t.Errorf("size = %d, want %d", size, test.wantSize)
			}
			if uint16(opcode) != test.wantOp {
				t.Errorf("opcode = %d, want %d", opcode, test.wantOp)
			}
		})
	}
}

func TestEventDecoding(t *testing.T) {
	var buf bytes.Buffer
	d := &Display{}
	for _, arg := range []interface{}{uint32(3), "wl_output", int32(-2), []byte{9, 8}} {
		if err := d.marshalArg(&buf, arg); err != nil {
			t.Fatalf("marshalArg failed: %v", err)
		}
	}

	e := &Event{data: buf.Bytes()}
	if got := e.Uint32(); got != 3 {
		t.Errorf("Uint32() = %d, want 3", got)
	}
	if got := e.String(); got != "wl_output" {
		t.Errorf("String() = %q, want wl_output", got)
	}
	if got := e.Int32(); got != -2 {
		t.Errorf("Int32() = %d, want -2", got)
	}
	if got := e.Array(); !bytes.Equal(got, []byte{9, 8}) {
		t.Errorf("Array() = %v, want [9 8]", got)
	}
	if e.Offset() != len(e.Data()) {
		t.Errorf("Offset() = %d, want %d", e.Offset(), len(e.Data()))
	}
	// Reading past the end yields zero values
	if got := e.Uint32(); got != 0 {
		t.Errorf("Uint32() past end = %d, want 0", got)
	}
}

func TestAllocateID(t *testing.T) {
	d := &Display{
		nextID: 2, // Start at 2 (1 is reserved for display)
	}

	id1 := d.allocateID()
	id2 := d.allocateID()
	id3 := d.allocateID()

	if id1 != 2 {
		t.Errorf("First ID = %d, want 2", id1)
	}
	if id2 != 3 {
		t.Errorf("Second ID = %d, want 3", id2)
	}
	if id3 != 4 {
		t.Errorf("Third ID = %d, want 4", id3)
	}
}

func TestRegistryGlobalStorage(t *testing.T) {
	registry := &Registry{
		globals:  make(map[uint32]Global),
		handlers: make(map[string]GlobalHandler),
	}

	announce := func(name uint32, iface string, version uint32) {
		var buf bytes.Buffer
		d := &Display{}
		_ = d.marshalArg(&buf, name)
		_ = d.marshalArg(&buf, iface)
		_ = d.marshalArg(&buf, version)
		registry.Dispatch(&Event{Opcode: 0, data: buf.Bytes()})
	}

	var seatName uint32
	registry.AddHandler("wl_seat", func(_ *Registry, name uint32, _ uint32) {
		seatName = name
	})

	announce(1, "wl_compositor", 4)
	announce(2, "wl_seat", 7)

	globals := registry.GetGlobals()
	if len(globals) != 2 {
		t.Errorf("GetGlobals() returned %d globals, want 2", len(globals))
	}
	if seatName != 2 {
		t.Errorf("wl_seat handler got name %d, want 2", seatName)
	}

	found, exists := registry.FindGlobal("wl_compositor")
	if !exists {
		t.Error("wl_compositor should be found")
	}
	if found.Name != 1 || found.Version != 4 {
		t.Errorf("Found global = %+v, want name 1 version 4", found)
	}

	if _, exists = registry.FindGlobal("non_existent"); exists {
		t.Error("non_existent should not be found")
	}

	// global_remove
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, 2)
	registry.Dispatch(&Event{Opcode: 1, data: data})
	if _, exists = registry.FindGlobalByName(2); exists {
		t.Error("wl_seat should be removed")
	}
}

func BenchmarkEventDispatch(b *testing.B) {
	dispatcher := NewEventDispatcher()
	dispatcher.RegisterHandler(123, 1, func(event *Event) {})

	event := &Event{ProxyID: 123, Opcode: 1, data: []byte{0x01, 0x02, 0x03, 0x04}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dispatcher.Dispatch(event)
	}
}

func BenchmarkFixedConversion(b *testing.B) {
	values := []float64{1.0, 0.5, 123.456, -1.5, 256.789}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, v := range values {
			fixed := NewFixed(v)
			_ = fixed.Float64()
		}
	}
}
