package body

import (
	"os"
	"testing"
)

func TestFactorySmallStaysInMemory(t *testing.T) {
	f := NewFactory(1024, t.TempDir())
	if err := f.Append([]byte("hello ")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := f.Append([]byte("world")); err != nil {
		t.Fatalf("append: %v", err)
	}
	b, err := f.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := b.(*memoryBody); !ok {
		t.Fatalf("expected memoryBody, got %T", b)
	}
	if b.Size() != 11 {
		t.Fatalf("expected size 11, got %d", b.Size())
	}
	data, err := b.Data()
	if err != nil || string(data) != "hello world" {
		t.Fatalf("unexpected data %q err %v", data, err)
	}
}

func TestFactorySpillsToDisk(t *testing.T) {
	dir := t.TempDir()
	f := NewFactory(4, dir)
	if err := f.Append([]byte("hello")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := f.Append([]byte(" world")); err != nil {
		t.Fatalf("append: %v", err)
	}
	b, err := f.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	db, ok := b.(*diskBody)
	if !ok {
		t.Fatalf("expected diskBody, got %T", b)
	}
	if b.Size() != 11 {
		t.Fatalf("expected size 11, got %d", b.Size())
	}
	data, err := b.Data()
	if err != nil || string(data) != "hello world" {
		t.Fatalf("unexpected data %q err %v", data, err)
	}
	if _, err := os.Stat(db.path); err != nil {
		t.Fatalf("expected temp file to exist: %v", err)
	}
	if err := b.Delete(); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(db.path); !os.IsNotExist(err) {
		t.Fatalf("expected temp file removed after delete")
	}
}

func TestMoveToDiskBody(t *testing.T) {
	dir := t.TempDir()
	f := NewFactory(1, dir)
	_ = f.Append([]byte("payload"))
	b, err := f.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	dest := dir + "/moved.bin"
	if err := b.MoveTo(dest); err != nil {
		t.Fatalf("move_to: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "payload" {
		t.Fatalf("unexpected moved data %q err %v", data, err)
	}
}

func TestClearRemovesSpilledFile(t *testing.T) {
	dir := t.TempDir()
	f := NewFactory(1, dir)
	_ = f.Append([]byte("spill me"))
	path := f.path
	if err := f.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if f.Size() != 0 {
		t.Fatalf("expected size reset to 0, got %d", f.Size())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected spilled temp file removed after clear")
	}
}
