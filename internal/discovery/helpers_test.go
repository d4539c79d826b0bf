package discovery

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func writeProcStat(t *testing.T, procRoot string, pid int, comm string, ppid, pgrp int) {
	t.Helper()
	dir := filepath.Join(procRoot, strconv.Itoa(pid))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	// Layout: pid (comm) state ppid pgrp ...
	content := strconv.Itoa(pid) + " (" + comm + ") S " + strconv.Itoa(ppid) + " " + strconv.Itoa(pgrp) + " 0 0 0"
	if err := os.WriteFile(filepath.Join(dir, "stat"), []byte(content), 0o644); err != nil {
		t.Fatalf("write stat: %v", err)
	}
}

func writeCgroupPath(t *testing.T, procRoot string, pid int, path string) {
	t.Helper()
	dir := filepath.Join(procRoot, strconv.Itoa(pid))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	content := "0::" + path
	if err := os.WriteFile(filepath.Join(dir, "cgroup"), []byte(content), 0o644); err != nil {
		t.Fatalf("write cgroup: %v", err)
	}
}

func writeCmdline(t *testing.T, procRoot string, pid int, argv ...string) {
	t.Helper()
	dir := filepath.Join(procRoot, strconv.Itoa(pid))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	content := ""
	for _, a := range argv {
		content += a + "\x00"
	}
	if err := os.WriteFile(filepath.Join(dir, "cmdline"), []byte(content), 0o644); err != nil {
		t.Fatalf("write cmdline: %v", err)
	}
}

func writeTaskThread(t *testing.T, procRoot string, pid, tid int, comm string) {
	t.Helper()
	dir := filepath.Join(procRoot, strconv.Itoa(pid), "task", strconv.Itoa(tid))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "comm"), []byte(comm), 0o644); err != nil {
		t.Fatalf("write comm: %v", err)
	}
}
