package redisstore

import "github.com/redis/go-redis/v9"

// Timestamps are integer microseconds. Lua numbers are doubles, which hold
// them exactly; '%.0f' keeps them out of exponent notation.

// claimScript pops the oldest queued id and sets its status to the claim target.
// KEYS[1] queued zset; ARGV[1] task key prefix, ARGV[2] now, ARGV[3] status.
// Returns the HGETALL reply of the claimed task, or nil.
var claimScript = redis.NewScript(`
local ids = redis.call('ZRANGE', KEYS[1], 0, 0)
if #ids == 0 then
  return false
end
local id = ids[1]
redis.call('ZREM', KEYS[1], id)

local key = ARGV[1] .. id
local now = tonumber(ARGV[2])
local prev = tonumber(redis.call('HGET', key, 'updated'))
if prev and prev >= now then
  now = prev + 1
end
redis.call('HSET', key, 'status', ARGV[3], 'updated', string.format('%.0f', now))
return redis.call('HGETALL', key)
`)

// updateScript applies a partial write guarded by the lifecycle.
// KEYS[1] task hash; ARGV[1] now, ARGV[2] target status or "",
// ARGV[3] comma separated allowed sources, ARGV[4..] field/value pairs.
// Returns 1 on success, 0 when the status guard fails, -1 for a missing task.
var updateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end

if ARGV[2] ~= '' then
  local current = redis.call('HGET', KEYS[1], 'status')
  local allowed = false
  for s in string.gmatch(ARGV[3], '[^,]+') do
    if s == current then
      allowed = true
    end
  end
  if not allowed then
    return 0
  end
  redis.call('HSET', KEYS[1], 'status', ARGV[2])
end

for i = 4, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end

local now = tonumber(ARGV[1])
local prev = tonumber(redis.call('HGET', KEYS[1], 'updated'))
if prev and prev >= now then
  now = prev + 1
end
redis.call('HSET', KEYS[1], 'updated', string.format('%.0f', now))
return 1
`)
