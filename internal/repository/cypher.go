package repository

var schemaStatements = []string{
	`CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.userId IS UNIQUE`,
	`CREATE CONSTRAINT user_referral_code_unique IF NOT EXISTS FOR (u:User) REQUIRE u.referralCode IS UNIQUE`,
	`CREATE CONSTRAINT referral_earning_key_unique IF NOT EXISTS FOR (e:ReferralEarning) REQUIRE e.earningKey IS UNIQUE`,
	`CREATE INDEX referral_earning_earner IF NOT EXISTS FOR (e:ReferralEarning) ON (e.earnerId)`,
	`CREATE CONSTRAINT referral_redemption_id_unique IF NOT EXISTS FOR (r:ReferralRedemption) REQUIRE r.redemptionId IS UNIQUE`,
}

const userProjection = `u {.*} AS user`

const createUserCypher = `
MERGE (u:User {userId: $userId})
ON CREATE SET u += $props,
              u.referralPath = [],
              u.referralLevel = 0,
              u.referralDownlineCounts = $zeroCounts,
              u.referralWalletPaise = 0,
              u.referralTotalEarnedPaise = 0,
              u.createdAt = $now,
              u.updatedAt = $now
RETURN ` + userProjection

const getUserCypher = `
MATCH (u:User {userId: $userId})
RETURN ` + userProjection

const findByCodeCypher = `
MATCH (u:User {referralCode: $code})
RETURN ` + userProjection

const setReferralCodeCypher = `
MATCH (u:User {userId: $userId})
SET u.referralCode = coalesce(u.referralCode, $code),
    u.updatedAt = $now
RETURN u.referralCode AS code
`

// The WHERE guard keeps an existing referrer in place, so a user gets at most
// one REFERRED_BY edge.
const attachReferrerCypher = `
MATCH (u:User {userId: $userId})
WHERE u.referredBy IS NULL
MATCH (p:User {userId: $referrerId})
SET u.referredBy = $referrerId,
    u.referralPath = $path,
    u.updatedAt = $now
MERGE (u)-[:REFERRED_BY]->(p)
RETURN u.userId AS userId
`

// Setting _lock first takes the node write lock before the counters are read.
const incrementDownlineCypher = `
MATCH (a:User {userId: $userId})
SET a._lock = true
WITH a, coalesce(a.referralDownlineCounts, $zeroCounts) AS counts
SET a.referralDownlineCounts = [i IN range(0, size($zeroCounts) - 1) |
      coalesce(counts[i], 0) + CASE WHEN i = $depth THEN 1 ELSE 0 END],
    a.updatedAt = $now
REMOVE a._lock
RETURN a.referralDownlineCounts AS counts, coalesce(a.referralLevel, 0) AS level
`

const raiseLevelCypher = `
MATCH (u:User {userId: $userId})
SET u.referralLevel = CASE
      WHEN coalesce(u.referralLevel, 0) < $level THEN $level
      ELSE coalesce(u.referralLevel, 0)
    END,
    u.updatedAt = $now
RETURN u.referralLevel AS level
`

// MERGE on the unique earningKey decides creation; balances move only when
// this statement created the record. Balances are integer paise.
const recordEarningCypher = `
MATCH (a:User {userId: $earnerId})
SET a._lock = true
MERGE (e:ReferralEarning {earningKey: $earningKey})
ON CREATE SET e += $props, e._created = true
WITH a, e, coalesce(e._created, false) AS created
REMOVE e._created, a._lock
FOREACH (_ IN CASE WHEN created THEN [1] ELSE [] END |
  SET a.referralWalletPaise = coalesce(a.referralWalletPaise, 0) + $amountPaise,
      a.referralTotalEarnedPaise = coalesce(a.referralTotalEarnedPaise, 0) + $amountPaise,
      a.updatedAt = $now
  MERGE (a)-[:EARNED]->(e)
)
RETURN created
`

// The balance only moves when the redemption id is new and the balance
// covers the amount; both checks run under the user's write lock.
const debitReferralCypher = `
MATCH (u:User {userId: $userId})
SET u._lock = true
WITH u
OPTIONAL MATCH (u)-[:REDEEMED]->(prev:ReferralRedemption {redemptionId: $redemptionId})
WITH u, prev, coalesce(u.referralWalletPaise, 0) AS available
WITH u, prev, available, prev IS NULL AND available >= $amountPaise AS applied
FOREACH (_ IN CASE WHEN applied THEN [1] ELSE [] END |
  SET u.referralWalletPaise = available - $amountPaise,
      u.updatedAt = $now
  CREATE (u)-[:REDEEMED]->(:ReferralRedemption {
    redemptionId: $redemptionId,
    userId: $userId,
    amountPaise: $amountPaise,
    status: 'debited',
    createdAt: $now
  })
)
REMOVE u._lock
RETURN applied, prev IS NOT NULL AS duplicate, available
`

const reverseRedemptionCypher = `
MATCH (u:User {userId: $userId})-[:REDEEMED]->(r:ReferralRedemption {redemptionId: $redemptionId})
WHERE r.status = 'debited'
SET u._lock = true
SET u.referralWalletPaise = coalesce(u.referralWalletPaise, 0) + r.amountPaise,
    u.updatedAt = $now,
    r.status = 'reversed',
    r.reversedAt = $now
REMOVE u._lock
RETURN r.redemptionId AS redemptionId
`

const listEarningsCypher = `
MATCH (e:ReferralEarning {earnerId: $userId})
RETURN e {.*} AS earning
ORDER BY datetime(e.createdAt) DESC, e.earningId
LIMIT $limit
`

const countEarningsCypher = `
MATCH (e:ReferralEarning {earnerId: $userId})
RETURN count(e) AS total
`

const downlineFilter = `
MATCH (u:User)
WHERE size(coalesce(u.referralPath, [])) > $depth
  AND u.referralPath[$depth] = $userId
`

const listDownlineCypher = downlineFilter + `
RETURN ` + userProjection + `
ORDER BY datetime(u.createdAt) DESC, u.userId
SKIP $skip
LIMIT $limit
`

const countDownlineCypher = downlineFilter + `
RETURN count(u) AS total
`

const loadSubtreeCypher = `
MATCH (u:User)
WHERE u.userId = $rootId OR $rootId IN coalesce(u.referralPath, [])
RETURN ` + userProjection + `
ORDER BY datetime(u.createdAt), u.userId
`
