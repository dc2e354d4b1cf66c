package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestWorkItem_Fields(t *testing.T) {
	typ := reflect.TypeOf(WorkItem{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "autoIncrement")
	assertGormTag(t, typ, "Number", "not null")
	assertGormTag(t, typ, "Address", "type:text")
	assertGormTag(t, typ, "Claimed", "index")
	assertGormTag(t, typ, "ClaimedBy", "index")
	assertGormTag(t, typ, "ActiveClaim", "uniqueIndex")
	assertGormTag(t, typ, "Completed", "index")
	assertGormTag(t, typ, "Summary", "type:text")

	assertFieldType(t, typ, "ActiveClaim", "*string")
	assertFieldType(t, typ, "ClaimedAt", "*time.Time")
	assertFieldType(t, typ, "CompletedAt", "*time.Time")
	assertFieldType(t, typ, "SummaryAt", "*time.Time")
}

func TestOperator_Fields(t *testing.T) {
	typ := reflect.TypeOf(Operator{})
	assertGormTag(t, typ, "OperatorID", "uniqueIndex")
	assertGormTag(t, typ, "OperatorID", "not null")
}

func TestAdminGrant_Fields(t *testing.T) {
	typ := reflect.TypeOf(AdminGrant{})
	assertGormTag(t, typ, "OperatorID", "uniqueIndex")
	assertGormTag(t, typ, "AddedBy", "not null")
}

func TestNoAnswerRecord_Fields(t *testing.T) {
	typ := reflect.TypeOf(NoAnswerRecord{})
	assertGormTag(t, typ, "OperatorID", "index")
	assertGormTag(t, typ, "WorkItemID", "index")
	assertGormTag(t, typ, "CreatedAt", "index")
	assertFieldType(t, typ, "WorkItemID", "uint")
}

func TestLineRequest_Fields(t *testing.T) {
	typ := reflect.TypeOf(LineRequest{})
	assertGormTag(t, typ, "Status", "default:pending")
	assertGormTag(t, typ, "Status", "index")
	assertFieldType(t, typ, "ProcessedAt", "*time.Time")
}

func TestDeskState_Fields(t *testing.T) {
	typ := reflect.TypeOf(DeskState{})
	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "Status", "default:running")
}

func TestDeskLease_Fields(t *testing.T) {
	typ := reflect.TypeOf(DeskLease{})
	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "Holder", "not null")
	assertGormTag(t, typ, "Heartbeat", "index")
	assertFieldType(t, typ, "Heartbeat", "time.Time")
}

func TestStatusConstants_Distinct(t *testing.T) {
	all := []string{
		StatusOTP, StatusNoAnswer, StatusNeedPass, StatusNeedEmail,
		StatusFinishing, StatusCallback, StatusCallEnded,
	}
	seen := make(map[string]bool)
	for _, s := range all {
		if s == "" {
			t.Fatal("empty status constant")
		}
		if seen[s] {
			t.Errorf("duplicate status constant %q", s)
		}
		seen[s] = true
	}
}
