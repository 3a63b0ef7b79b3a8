package sqlinline

const QWorkerClaimJob = `--sql 4f55a9b7-4e9f-4e45-a3b3-5a532d21d9db
with next_job as (
    select id
    from jobs
    where status = 'pending'
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update jobs
    set status = 'in_progress', updated_at = now()
    where id in (select id from next_job)
    returning id
)
select id::text from updated;
`

// QWorkerClaimStaleJob claims the oldest job that has been pending for more
// than $1 seconds. Workers on the Redis queue use it to pick up jobs whose
// push never arrived.
const QWorkerClaimStaleJob = `--sql 9d2e6b41-3c7a-4f08-b5d9-2a6f1e8c4b37
with next_job as (
    select id
    from jobs
    where status = 'pending'
      and created_at < now() - make_interval(secs => $1)
    order by created_at asc
    for update skip locked
    limit 1
),
updated as (
    update jobs
    set status = 'in_progress', updated_at = now()
    where id in (select id from next_job)
    returning id
)
select id::text from updated;
`

// QWorkerClaimJobByID moves a single pending job to in_progress. No row is
// returned when the job was already claimed or finished.
const QWorkerClaimJobByID = `--sql 61f0c8a3-7b2d-4e95-8c14-d3a5b9e70f26
update jobs
set status = 'in_progress', updated_at = now()
where id = $1::uuid and status = 'pending'
returning id::text;
`
