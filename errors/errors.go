// Copyright © 2018 Intel Corporation
//
// SPDX-License-Identifier: GPL-3.0-only

// Package errors provides the traceable error type used across the
// storage engine, plus the typed Kind wrapper used to classify the
// Validation/Lookup/Geometry/Planning/Execution error families the
// specification calls out.
package errors

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// TraceableError is an internal error used to carry trace details
// to be shared across the multiple layers and reporting facilities
type TraceableError struct {
	Trace string
	When  time.Time
	What  string
}

// ValidationError is a type of error used to report model or any general condition
// validation error. We don't deal this error as a regular error i.e panic`ing, showing
// the error stack trace and exiting with a non zero code, otherwise, we do show
// a nicely formatted and user friendly error message (the What attribute) and keep
// returning a non zero exit code.
// Consider this error as a user error, not an internal malfunctioning.
type ValidationError struct {
	When time.Time
	What string
}

func getTraceIdx(idx int) (string, string, int) {
	pc := make([]uintptr, 10)
	runtime.Callers(2, pc)
	f := runtime.FuncForPC(pc[idx+1])
	file, line := f.FileLine(pc[idx+1])
	return f.Name(), file, line
}

func formatTraceIdx(idx int) (string, string) {
	funcName, file, line := getTraceIdx(idx)
	fileName := filepath.Base(file)

	fn := strings.Split(funcName, "github.com/clearlinux/storage-engine/")

	if len(fn) > 1 {
		funcName = fn[1]
	} else {
		funcName = fn[0]
	}

	dir := strings.Split(filepath.Dir(file), "/storage-engine/")
	var dirName string
	if len(dir) > 1 {
		dirName = dir[1]
	} else {
		dirName = dir[0]
	}

	return funcName, fmt.Sprintf("%s/%s:%d", dirName, fileName, line)
}

func getTrace() string {
	cfName, cTrace := formatTraceIdx(3)
	caller := fmt.Sprintf("%s()\n     %s\n", cfName, cTrace)

	rfName, rTrace := formatTraceIdx(2)
	raiser := fmt.Sprintf("%s()\n     %s\n", rfName, rTrace)

	return fmt.Sprintf("\n\nError Trace:\n%s%s", raiser, caller)
}

func (e TraceableError) Error() string {
	return fmt.Sprintf("%s%s", e.What, e.Trace)
}

// Errorf Returns a new error with the stack information
func Errorf(format string, a ...interface{}) error {
	return TraceableError{
		Trace: getTrace(),
		When:  time.Now(),
		What:  fmt.Sprintf(format, a...),
	}
}

// Wrap returns an error with the caller stack information
// embedded in the original error message
func Wrap(err error) error {
	return Errorf(err.Error())
}

func (ve ValidationError) Error() string {
	return ve.What
}

// ValidationErrorf formats a new ValidationError
func ValidationErrorf(format string, a ...interface{}) error {
	return ValidationError{
		What: fmt.Sprintf(format, a...),
	}
}

// IsValidationError returns true if err is a ValidationError
// returns false otherwise
func IsValidationError(err error) bool {
	if _, ok := err.(ValidationError); ok {
		return true
	}
	return false
}

// Kind classifies an EngineError into the families described by the
// specification's error handling design: Validation, Lookup, Geometry,
// Planning and Execution.
type Kind int

// The error kinds surfaced by the devicegraph/actiongraph/executor core.
const (
	KindUnknown Kind = iota

	// Validation
	KindInvalidName
	KindInvalidExtentSize
	KindDifferentBlockSizes
	KindWrongNumberOfChildren
	KindDeviceHasWrongType
	KindUnsupportedFeature

	// Lookup
	KindDeviceNotFoundBySid
	KindDeviceNotFoundByName
	KindLvmLvNotFoundByLvName

	// Geometry
	KindAlignError
	KindNoSpaceInVg
	KindMaxSizeForLvmLvThin

	// Planning
	KindPlanningCycle
	KindCannotCreateDevice
	KindCannotDeleteDevice

	// Execution
	KindExecutionException
)

var kindNames = map[Kind]string{
	KindUnknown:               "Unknown",
	KindInvalidName:           "InvalidName",
	KindInvalidExtentSize:     "InvalidExtentSize",
	KindDifferentBlockSizes:   "DifferentBlockSizes",
	KindWrongNumberOfChildren: "WrongNumberOfChildren",
	KindDeviceHasWrongType:    "DeviceHasWrongType",
	KindUnsupportedFeature:    "UnsupportedFeature",
	KindDeviceNotFoundBySid:   "DeviceNotFoundBySid",
	KindDeviceNotFoundByName:  "DeviceNotFoundByName",
	KindLvmLvNotFoundByLvName: "LvmLvNotFoundByLvName",
	KindAlignError:            "AlignError",
	KindNoSpaceInVg:           "NoSpaceInVg",
	KindMaxSizeForLvmLvThin:   "MaxSizeForLvmLvThin",
	KindPlanningCycle:         "PlanningCycle",
	KindCannotCreateDevice:    "CannotCreateDevice",
	KindCannotDeleteDevice:    "CannotDeleteDevice",
	KindExecutionException:    "ExecutionException",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// EngineError is a Kind-tagged TraceableError. Execution-kind errors
// additionally carry the action that failed and the upstream cause, per
// ExecutionException's contract in the specification.
type EngineError struct {
	TraceableError
	Kind   Kind
	Action interface{}
	Cause  error
}

func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.What)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Cause.Error())
	}
	return msg
}

// Unwrap lets errors.Is/As from the standard library reach the upstream cause.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// New builds a Kind-tagged engine error.
func New(kind Kind, format string, a ...interface{}) error {
	return &EngineError{
		TraceableError: Errorf(format, a...).(TraceableError),
		Kind:           kind,
	}
}

// NewExecution builds an ExecutionException carrying the failing action and
// its upstream cause, per the Executor contract (§4.F/§7).
func NewExecution(action interface{}, cause error) error {
	return &EngineError{
		TraceableError: Errorf("execution failed").(TraceableError),
		Kind:           KindExecutionException,
		Action:         action,
		Cause:          cause,
	}
}

// KindOf returns the Kind of err, or KindUnknown if err is not an EngineError.
func KindOf(err error) Kind {
	if ee, ok := err.(*EngineError); ok {
		return ee.Kind
	}
	return KindUnknown
}

// Is reports whether err is an EngineError of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
