package btreeidx

import (
	"encoding/binary"
	"strconv"

	"github.com/dbforge/btreeidx/internal/bufmgr"
)

// relationNameWidth is the fixed width, in bytes, of the relation-name
// field stored in the meta page, per spec.md §6's persistent layout.
const relationNameWidth = 20

// metaPageId is always 1: "page 1 is the meta page" per spec.md §3.
const metaPageId bufmgr.PageId = 1

// metaInfo mirrors spec.md §6's persisted meta-page layout:
//
//	{ relationName[20], attrByteOffset:int32, attrType:int32, rootPageNo:PageId }
type metaInfo struct {
	relationName   string
	attrByteOffset int32
	attrType       AttrType
	rootPageNo     bufmgr.PageId
}

func marshalMeta(buf bufmgr.Page, m metaInfo) {
	var nameBuf [relationNameWidth]byte
	copy(nameBuf[:], m.relationName)
	copy(buf[0:relationNameWidth], nameBuf[:])
	binary.LittleEndian.PutUint32(buf[20:24], uint32(m.attrByteOffset))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(m.attrType))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(m.rootPageNo))
}

func unmarshalMeta(buf bufmgr.Page) metaInfo {
	nameBuf := buf[0:relationNameWidth]
	end := relationNameWidth
	for end > 0 && nameBuf[end-1] == 0 {
		end--
	}
	return metaInfo{
		relationName:   string(nameBuf[:end]),
		attrByteOffset: int32(binary.LittleEndian.Uint32(buf[20:24])),
		attrType:       AttrType(int32(binary.LittleEndian.Uint32(buf[24:28]))),
		rootPageNo:     bufmgr.PageId(binary.LittleEndian.Uint32(buf[28:32])),
	}
}

// indexFileName derives the on-disk file name for an index deterministically,
// per spec.md §4.1: "<relationName>.<attrByteOffset>".
func indexFileName(relationName string, attrByteOffset int32) string {
	return relationName + "." + strconv.Itoa(int(attrByteOffset))
}
