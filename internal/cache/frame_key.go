package cache

import (
	"encoding/binary"
	"math"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/annel0/voxel-engine/internal/render"
)

// FrameKey ключ кадра: ревизия мира, камера, размер и плотность лучей.
// Любая правка мира меняет ревизию, поэтому старые кадры просто истекают по TTL.
func FrameKey(revision uint64, cam render.Camera, width, height, angInc int) string {
	h := xxhash.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	put(revision)
	for _, v := range []float64{
		cam.Pos.X, cam.Pos.Y, cam.Pos.Z,
		cam.Right.X, cam.Right.Y, cam.Right.Z,
		cam.Down.X, cam.Down.Y, cam.Down.Z,
		cam.Forward.X, cam.Forward.Y, cam.Forward.Z,
		cam.HX, cam.HY, cam.HZ,
	} {
		put(math.Float64bits(v))
	}
	put(uint64(width))
	put(uint64(height))
	put(uint64(angInc))
	return strconv.FormatUint(revision, 10) + ":" + strconv.FormatUint(h.Sum64(), 16)
}

// New выбирает Redis при заданном адресе, иначе кеш в памяти
func New(redisAddr string, ttlSeconds int) (CacheRepo, error) {
	if redisAddr == "" {
		return NewMemoryCache(), nil
	}
	return NewRedisCache(RedisConfig{Addr: redisAddr, DefaultTTL: secondsToTTL(ttlSeconds)})
}

func secondsToTTL(s int) time.Duration {
	return time.Duration(s) * time.Second
}
