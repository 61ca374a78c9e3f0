package expense

import (
	"regexp"
	"strings"
)

// Bucket is the display name of a reporting folder.
type Bucket string

const (
	BucketTaxi    Bucket = "打车票"
	BucketTravel  Bucket = "火车飞机票"
	BucketHotel   Bucket = "住宿费"
	BucketMeal    Bucket = "餐费"
	BucketOther   Bucket = "其他"
	BucketPending Bucket = "待确认"
)

var kindBuckets = map[Kind]Bucket{
	KindTaxi:   BucketTaxi,
	KindTrain:  BucketTravel,
	KindFlight: BucketTravel,
	KindHotel:  BucketHotel,
	KindMeal:   BucketMeal,
	KindOther:  BucketOther,
}

// bucketKinds is the reverse lookup used when rebuilding records from
// an organized tree. Travel folds onto train.
var bucketKinds = map[Bucket]Kind{
	BucketTaxi:    KindTaxi,
	BucketTravel:  KindTrain,
	BucketHotel:   KindHotel,
	BucketMeal:    KindMeal,
	BucketOther:   KindOther,
	BucketPending: KindOther,
}

// Buckets returns every bucket in report display order.
func Buckets() []Bucket {
	return []Bucket{BucketTaxi, BucketTravel, BucketHotel, BucketMeal, BucketPending, BucketOther}
}

// BucketFor maps a kind to its display bucket.
func BucketFor(k Kind) Bucket {
	if b, ok := kindBuckets[k]; ok {
		return b
	}
	return BucketOther
}

// Kind returns the kind a record placed in this bucket is assumed to have.
func (b Bucket) Kind() Kind {
	if k, ok := bucketKinds[b]; ok {
		return k
	}
	return KindOther
}

// folderAlias maps words found in hand-named folders onto buckets.
// Order matters: the first alias contained in the name wins.
var folderAlias = []struct {
	word   string
	bucket Bucket
}{
	{"打车", BucketTaxi},
	{"出租", BucketTaxi},
	{"网约车", BucketTaxi},
	{"火车", BucketTravel},
	{"飞机", BucketTravel},
	{"高铁", BucketTravel},
	{"机票", BucketTravel},
	{"酒店", BucketHotel},
	{"住宿", BucketHotel},
	{"宾馆", BucketHotel},
	{"餐", BucketMeal},
	{"饮食", BucketMeal},
	{"吃饭", BucketMeal},
	{"外卖", BucketMeal},
}

var (
	parenthetical = regexp.MustCompile(`[（(][^）)]*[）)]`)
	folderSuffix  = regexp.MustCompile(`[-_].*$`)
)

// BucketFromFolder resolves a folder name such as "打车票（已完成）" or
// "饮食-差肯德基发票" to a bucket. The boolean is false when nothing in the
// name is recognized; the bucket is then BucketOther.
func BucketFromFolder(name string) (Bucket, bool) {
	stripped := parenthetical.ReplaceAllString(name, "")
	if len([]rune(stripped)) > 4 {
		stripped = folderSuffix.ReplaceAllString(stripped, "")
	}
	stripped = strings.TrimSpace(stripped)

	for _, a := range folderAlias {
		if strings.Contains(stripped, a.word) {
			return a.bucket, true
		}
	}
	for _, b := range Buckets() {
		if strings.Contains(name, string(b)) {
			return b, true
		}
	}
	return BucketOther, false
}
