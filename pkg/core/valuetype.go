package core

import (
	"regexp"
	"strings"
)

// ValueType is the scalar kind of a property, used to convert discriminator literals.
type ValueType int

// Value types.
const (
	TypeString ValueType = iota
	TypeInt
	TypeFloat
	TypeDecimal
	TypeBool
	TypeUUID
	TypeTime
	TypeBytes
)

func (t ValueType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeDecimal:
		return "decimal"
	case TypeBool:
		return "bool"
	case TypeUUID:
		return "uuid"
	case TypeTime:
		return "time"
	case TypeBytes:
		return "bytes"
	default:
		return "string"
	}
}

var typeParams = regexp.MustCompile(`\s*\(.*\)\s*$`)

// sqlTypes maps normalized SQL data type names to value types.
var sqlTypes = map[string]ValueType{
	"bit": TypeBool, "bool": TypeBool, "boolean": TypeBool,
	"tinyint": TypeInt, "smallint": TypeInt, "int": TypeInt, "integer": TypeInt,
	"bigint": TypeInt, "int2": TypeInt, "int4": TypeInt, "int8": TypeInt,
	"serial": TypeInt, "bigserial": TypeInt, "smallserial": TypeInt,
	"real": TypeFloat, "float": TypeFloat, "float4": TypeFloat, "float8": TypeFloat,
	"double": TypeFloat, "double precision": TypeFloat,
	"decimal": TypeDecimal, "numeric": TypeDecimal, "money": TypeDecimal, "smallmoney": TypeDecimal,
	"uniqueidentifier": TypeUUID, "uuid": TypeUUID,
	"date": TypeTime, "time": TypeTime, "datetime": TypeTime, "datetime2": TypeTime,
	"datetimeoffset": TypeTime, "smalldatetime": TypeTime, "timestamp": TypeTime,
	"timestamptz": TypeTime, "timestamp with time zone": TypeTime,
	"binary": TypeBytes, "varbinary": TypeBytes, "image": TypeBytes, "bytea": TypeBytes,
	"blob": TypeBytes, "rowversion": TypeBytes,
}

// overrideTypes maps type-override names (as written in property rules) to value types.
var overrideTypes = map[string]ValueType{
	"string": TypeString, "system.string": TypeString,
	"int": TypeInt, "int16": TypeInt, "int32": TypeInt, "int64": TypeInt,
	"short": TypeInt, "long": TypeInt, "byte": TypeInt, "sbyte": TypeInt,
	"system.int16": TypeInt, "system.int32": TypeInt, "system.int64": TypeInt, "system.byte": TypeInt,
	"float": TypeFloat, "double": TypeFloat, "single": TypeFloat,
	"system.double": TypeFloat, "system.single": TypeFloat,
	"decimal": TypeDecimal, "system.decimal": TypeDecimal,
	"bool": TypeBool, "boolean": TypeBool, "system.boolean": TypeBool,
	"guid": TypeUUID, "uuid": TypeUUID, "system.guid": TypeUUID,
	"datetime": TypeTime, "datetimeoffset": TypeTime, "dateonly": TypeTime, "time": TypeTime,
	"system.datetime": TypeTime, "system.datetimeoffset": TypeTime,
	"byte[]": TypeBytes, "bytes": TypeBytes,
}

// ParseSQLType returns the value type for a SQL data type such as "nvarchar(50)".
// Unknown types are strings.
func ParseSQLType(dataType string) ValueType {
	t := strings.ToLower(strings.TrimSpace(typeParams.ReplaceAllString(dataType, "")))
	if vt, ok := sqlTypes[t]; ok {
		return vt
	}
	return TypeString
}

// ParseOverrideType returns the value type named by a property type override.
// A trailing "?" (nullable marker) is ignored.
func ParseOverrideType(name string) (ValueType, bool) {
	n := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "?"))
	vt, ok := overrideTypes[n]
	return vt, ok
}

// PropertyValueType returns the effective value type of a column: the override when it
// names a known type, otherwise the column's SQL type.
func PropertyValueType(col *Column, override string) ValueType {
	if override != "" {
		if vt, ok := ParseOverrideType(override); ok {
			return vt
		}
	}
	if col == nil {
		return TypeString
	}
	return ParseSQLType(col.DataType)
}
